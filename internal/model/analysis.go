package model

// ScriptQuote - цитата исходного видео с отметкой времени.
type ScriptQuote struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// ScriptStage - этап структуры исходного сценария.
type ScriptStage struct {
	Stage   string        `json:"stage"`
	Purpose string        `json:"purpose"`
	Quotes  []ScriptQuote `json:"quotes,omitempty"`
}

// AnalysisResult - результат анализа транскрипта исходного видео.
type AnalysisResult struct {
	Keywords        []string            `json:"keywords"`
	Intent          []StructuredContent `json:"intent"`
	ViewPrediction  []StructuredContent `json:"viewPrediction,omitempty"`
	ScriptStructure []ScriptStage       `json:"scriptStructure,omitempty"`
}

// Redacted оставляет только ключевые слова, намерение и этапы структуры без цитат.
// Дословный текст источника не должен попадать в новый план.
func (a *AnalysisResult) Redacted() *AnalysisResult {
	if a == nil {
		return nil
	}
	out := &AnalysisResult{
		Keywords: append([]string(nil), a.Keywords...),
		Intent:   append([]StructuredContent(nil), a.Intent...),
	}
	if len(a.ScriptStructure) > 0 {
		out.ScriptStructure = make([]ScriptStage, len(a.ScriptStructure))
		for i, st := range a.ScriptStructure {
			out.ScriptStructure[i] = ScriptStage{Stage: st.Stage, Purpose: st.Purpose}
		}
	}
	return out
}

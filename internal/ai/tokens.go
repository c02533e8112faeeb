package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Модели не из семейства OpenAI считаем по cl100k_base: точность не важна, нужен порядок величины.
const fallbackEncoding = "cl100k_base"

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// EstimateTokens приблизительно считает токены текста для модели.
// Возвращает 0, если кодировщик недоступен.
func EstimateTokens(model string, texts ...string) int {
	enc := encodingFor(model)
	if enc == nil {
		return 0
	}
	total := 0
	for _, t := range texts {
		if t == "" {
			continue
		}
		total += len(enc.Encode(t, nil, nil))
	}
	return total
}

func encodingFor(model string) *tiktoken.Tiktoken {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if enc, ok := encodings[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			// не кешируем ошибку: кодировка может появиться после загрузки словаря
			return nil
		}
	}
	encodings[model] = enc
	return enc
}

func estimateUsage(model string, req Request, completion string) UsageInfo {
	prompt := EstimateTokens(model, req.SystemPrompt, req.Prompt)
	out := EstimateTokens(model, completion)
	return UsageInfo{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
		Estimated:        true,
	}
}

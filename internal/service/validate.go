package service

import (
	"strings"

	"chapter-server/internal/model"
)

// ValidateOutline проверяет ответ оглавления: обязательные поля, непустые коллекции
// и точное совпадение числа глав.
func ValidateOutline(o *model.Outline, expectedChapters int, style model.ScriptStyle) error {
	const stage = model.StageOutline

	if o == nil {
		return model.NewContractViolation(stage, "body", "empty outline")
	}
	if len(o.NewIntent) == 0 {
		return model.NewContractViolation(stage, "newIntent", "must not be empty")
	}
	for i, block := range o.NewIntent {
		if blank(block.Title) || blank(block.Description) {
			return model.NewContractViolation(stage, "newIntent", "block %d is missing title or description", i)
		}
	}

	if len(o.Characters) == 0 && style != model.StyleNarration {
		return model.NewContractViolation(stage, "characters", "must not be empty for %s style", style)
	}
	seenCharacters := make(map[string]struct{}, len(o.Characters))
	for i, c := range o.Characters {
		if blank(c) {
			return model.NewContractViolation(stage, "characters", "label %d is blank", i)
		}
		if _, dup := seenCharacters[c]; dup {
			return model.NewContractViolation(stage, "characters", "duplicate label %q", c)
		}
		seenCharacters[c] = struct{}{}
	}

	if len(o.Chapters) != expectedChapters {
		return model.NewContractViolation(stage, "chapters", "expected %d chapters, got %d", expectedChapters, len(o.Chapters))
	}
	seenIDs := make(map[string]struct{}, len(o.Chapters))
	for i, ch := range o.Chapters {
		switch {
		case blank(ch.ID):
			return model.NewContractViolation(stage, "chapters.id", "chapter %d has no id", i)
		case blank(ch.Title):
			return model.NewContractViolation(stage, "chapters.title", "chapter %s has no title", ch.ID)
		case blank(ch.Purpose):
			return model.NewContractViolation(stage, "chapters.purpose", "chapter %s has no purpose", ch.ID)
		case blank(ch.EstimatedDuration):
			return model.NewContractViolation(stage, "chapters.estimatedDuration", "chapter %s has no estimated duration", ch.ID)
		}
		if _, dup := seenIDs[ch.ID]; dup {
			return model.NewContractViolation(stage, "chapters.id", "duplicate chapter id %q", ch.ID)
		}
		seenIDs[ch.ID] = struct{}{}
	}
	return nil
}

// ValidateScript проверяет сценарий главы: непустой список и все обязательные поля в каждой реплике.
func ValidateScript(lines []model.ScriptLine) error {
	const stage = model.StageChapterScript

	if len(lines) == 0 {
		return model.NewContractViolation(stage, "script", "must not be empty")
	}
	for i, l := range lines {
		switch {
		case blank(l.Character):
			return model.NewContractViolation(stage, "script.character", "line %d has no speaker", i)
		case blank(l.Line):
			return model.NewContractViolation(stage, "script.line", "line %d has no text", i)
		case blank(l.Timestamp):
			return model.NewContractViolation(stage, "script.timestamp", "line %d has no timestamp", i)
		case blank(l.ImagePrompt):
			return model.NewContractViolation(stage, "script.imagePrompt", "line %d has no image prompt", i)
		}
	}
	return nil
}

// ValidateAnalysis проверяет обязательные поля анализа.
func ValidateAnalysis(a *model.AnalysisResult) error {
	const stage = model.StageAnalysis

	if a == nil {
		return model.NewContractViolation(stage, "body", "empty analysis")
	}
	if len(a.Keywords) == 0 {
		return model.NewContractViolation(stage, "keywords", "must not be empty")
	}
	if len(a.Intent) == 0 {
		return model.NewContractViolation(stage, "intent", "must not be empty")
	}
	for i, st := range a.ScriptStructure {
		if blank(st.Stage) || blank(st.Purpose) {
			return model.NewContractViolation(stage, "scriptStructure", "stage %d is missing stage or purpose", i)
		}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON - в ответе не найден JSON.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON вырезает JSON из ответа модели: убирает markdown-ограждения ```json
// и текст вокруг внешнего объекта. Содержимое не исправляется.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:] // язык после ограждения
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// DecodeJSON извлекает и разбирает JSON ответа в значение типа T.
func DecodeJSON[T any](text string) (*T, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode response JSON: %w", err)
	}
	return &out, nil
}

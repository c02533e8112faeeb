package service

import (
	"chapter-server/internal/ai"
	"chapter-server/internal/model"
)

type outlineResponse struct {
	NewIntent  []model.StructuredContent `json:"newIntent" jsonschema_description:"영상의 새로운 기획 의도"`
	Characters []string                  `json:"characters" jsonschema_description:"대본에 등장하는 모든 인물 또는 화자의 목록"`
	Chapters   []model.ChapterStub       `json:"chapters" jsonschema_description:"영상을 챕터로 나눈 개요. 각 챕터는 독립적으로 대본을 생성할 수 있는 단위"`
}

type scriptResponse struct {
	Script []model.ScriptLine `json:"script" jsonschema_description:"이 챕터의 상세한 대본"`
}

type stageResponse struct {
	Stage   string              `json:"stage"`
	Purpose string              `json:"purpose"`
	Quotes  []model.ScriptQuote `json:"quotes" jsonschema_description:"이 단계를 가장 잘 보여주는 인용구와 MM:SS 타임스탬프"`
}

type analysisResponse struct {
	Keywords        []string                  `json:"keywords" jsonschema_description:"영상의 핵심 키워드 5-10개"`
	Intent          []model.StructuredContent `json:"intent" jsonschema_description:"영상의 기획 의도"`
	ViewPrediction  []model.StructuredContent `json:"viewPrediction" jsonschema_description:"조회수가 높은 이유"`
	ScriptStructure []stageResponse           `json:"scriptStructure" jsonschema_description:"대본 구조의 단계별 분석"`
}

type ideasResponse struct {
	Ideas []string `json:"ideas" jsonschema_description:"새로운 영상 주제 아이디어 목록"`
}

var (
	outlineSchema  = ai.SchemaFor[outlineResponse]()
	scriptSchema   = ai.SchemaFor[scriptResponse]()
	analysisSchema = ai.SchemaFor[analysisResponse]()
	ideasSchema    = ai.SchemaFor[ideasResponse]()
)

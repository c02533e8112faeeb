package workflow_test

import (
	"context"
	"strings"
	"testing"

	"chapter-server/internal/ai"
	"chapter-server/internal/mocks"
	"chapter-server/internal/model"
	"chapter-server/internal/prompt"
	"chapter-server/internal/repository"
	"chapter-server/internal/service"
	"chapter-server/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const catVlogOutline = `{
  "newIntent": [{"title": "힐링", "description": "고양이와 함께하는 하루"}],
  "characters": ["집사", "고양이", "친구"],
  "chapters": [
    {"id": "chapter-1", "title": "아침 햇살", "purpose": "하루의 시작", "estimatedDuration": "3분"},
    {"id": "chapter-2", "title": "낮잠 시간", "purpose": "하루의 한가운데", "estimatedDuration": "3분"},
    {"id": "chapter-3", "title": "저녁 산책", "purpose": "하루의 마무리", "estimatedDuration": "2분"}
  ]
}`

func scriptFor(title string) interface{} {
	return mock.MatchedBy(func(r ai.Request) bool {
		return r.Operation == model.StageChapterScript && strings.Contains(r.Prompt, "- 제목: "+title)
	})
}

func TestScenario_CatVlogEightMinutes(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	client := mocks.NewMockAIClient(t)
	builder := prompt.NewBuilder(prompt.DefaultCatalog())
	params := ai.GenerationParams{}

	client.On("Generate", mock.Anything, mock.MatchedBy(func(r ai.Request) bool {
		return r.Operation == model.StageOutline && strings.Contains(r.Prompt, "고양이 브이로그")
	})).Return(catVlogOutline, ai.UsageInfo{}, nil).Once()
	client.On("Generate", mock.Anything, scriptFor("아침 햇살")).Return(`{"script":[
		{"character":"집사","line":"좋은 아침!","timestamp":"00:00","imagePrompt":"owner opening curtains"},
		{"character":"고양이","line":"야옹","timestamp":"00:05","imagePrompt":"cat yawning in sunlight"}
	]}`, ai.UsageInfo{}, nil).Once()
	client.On("Generate", mock.Anything, scriptFor("낮잠 시간")).Return(`{"script":[
		{"character":"집사","line":"쉿, 자고 있어","timestamp":"03:00","imagePrompt":"cat napping on a sofa"},
		{"character":"친구","line":"너무 귀엽다","timestamp":"03:05","imagePrompt":"friend whispering"}
	]}`, ai.UsageInfo{}, nil).Once()
	client.On("Generate", mock.Anything, scriptFor("저녁 산책")).Return(`{"script":[
		{"character":"친구","line":"산책 갈까?","timestamp":"06:00","imagePrompt":"friend holding a leash"},
		{"character":"고양이","line":"냐옹","timestamp":"06:06","imagePrompt":"cat walking at dusk"}
	]}`, ai.UsageInfo{}, nil).Once()

	repo := repository.NewPlanRepository(repository.NewMemoryStore(), repository.DefaultErrorLogSize, logger)
	registry := workflow.NewRegistry(
		service.NewChapterPlanner(client, builder, params, logger),
		service.NewScriptGenerator(client, builder, params, logger),
		repo,
		workflow.RegistryConfig{},
		logger,
	)

	session, err := registry.Create(ctx, workflow.CreatePlanRequest{
		Topic:    "고양이 브이로그",
		Category: "브이로그",
		Length:   "8분",
		Style:    model.StyleDialogue,
	})
	require.NoError(t, err)
	require.Equal(t, 3, session.Plan.Len())

	for i := 0; i < session.Plan.Len(); i++ {
		require.NoError(t, session.Controller.Generate(ctx, i, workflow.StartOptions{}))
	}
	assert.True(t, session.Plan.Completed())

	snap := session.Plan.Snapshot()
	declared := map[string]bool{}
	for _, c := range snap.Characters {
		declared[c] = true
	}
	assert.Len(t, declared, 3)
	for _, ch := range snap.Chapters {
		assert.Equal(t, model.ChapterDone, ch.State)
		assert.Empty(t, ch.QualityIssues)
		require.NotEmpty(t, ch.Script)
		for _, line := range ch.Script {
			assert.True(t, declared[line.Character], "undeclared speaker %q", line.Character)
		}
	}

	stored, err := repo.LoadPlan(ctx, snap.ID)
	require.NoError(t, err)
	for _, ch := range stored.Chapters {
		assert.Equal(t, model.ChapterDone, ch.State)
	}
}

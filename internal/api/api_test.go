package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chapter-server/internal/api"
	"chapter-server/internal/mocks"
	"chapter-server/internal/model"
	"chapter-server/internal/repository"
	"chapter-server/internal/service"
	"chapter-server/internal/workflow"
	"chapter-server/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router    *gin.Engine
	planner   *mocks.MockPlanner
	generator *mocks.MockScriptGenerator
	analyzer  *mocks.MockAnalyzer
	provider  *mocks.MockAIClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	env := &testEnv{
		planner:   mocks.NewMockPlanner(t),
		generator: mocks.NewMockScriptGenerator(t),
		analyzer:  mocks.NewMockAnalyzer(t),
		provider:  mocks.NewMockAIClient(t),
	}

	repo := repository.NewPlanRepository(repository.NewMemoryStore(), repository.DefaultErrorLogSize, logger)
	registry := workflow.NewRegistry(env.planner, env.generator, repo, workflow.RegistryConfig{
		ChapterTimeout: 5 * time.Second,
		OutlineTimeout: 5 * time.Second,
	}, logger)
	tasks := taskmanager.New(taskmanager.Config{MaxTasks: 4})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tasks.Shutdown(ctx)
	})

	h := api.NewHandler(api.Deps{
		Sessions:   registry,
		Analyzer:   env.analyzer,
		Provider:   env.provider,
		Clients:    repo,
		Tasks:      tasks,
		Categories: []string{"브이로그", "썰 채널"},
	}, logger)
	env.router = api.NewRouter(h, api.RouterConfig{}, logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func twoChapterOutline() *model.Outline {
	return &model.Outline{
		NewIntent:  []model.StructuredContent{{Title: "힐링", Description: "고양이와 보내는 하루"}},
		Characters: []string{"집사", "고양이", "친구"},
		Chapters: []model.ChapterStub{
			{ID: "chapter-1", Title: "아침 햇살", Purpose: "기상", EstimatedDuration: "4분"},
			{ID: "chapter-2", Title: "저녁 산책", Purpose: "마무리", EstimatedDuration: "4분"},
		},
	}
}

func chapterScript() *service.ScriptResult {
	return &service.ScriptResult{Lines: []model.ScriptLine{
		{Character: "집사", Line: "일어났어?", Timestamp: "00:00", ImagePrompt: "a sleepy cat"},
		{Character: "고양이", Line: "야옹", Timestamp: "00:04", ImagePrompt: "a cat stretching"},
	}}
}

func (e *testEnv) createPlan(t *testing.T) api.PlanResponse {
	t.Helper()
	e.planner.On("PlanChapters", mock.Anything, mock.MatchedBy(func(r service.PlanRequest) bool {
		return r.TotalMinutes == 8 && r.Style == model.StyleDialogue
	})).Return(twoChapterOutline(), nil).Once()

	w := e.do(t, http.MethodPost, "/api/v1/plans", map[string]any{
		"topic":    "고양이 브이로그",
		"category": "브이로그",
		"length":   "8분",
		"style":    "대화 버전",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[api.PlanResponse](t, w)
}

func (e *testEnv) waitTask(t *testing.T, taskID string) taskmanager.Task {
	t.Helper()
	var task taskmanager.Task
	require.Eventually(t, func() bool {
		w := e.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		task = decode[taskmanager.Task](t, w)
		return task.Status.Finished()
	}, 3*time.Second, 10*time.Millisecond)
	return task
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":["브이로그","썰 채널"]}`, w.Body.String())
}

func TestCreateAndGetPlan(t *testing.T) {
	env := newTestEnv(t)
	created := env.createPlan(t)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 8, created.TotalMinutes)
	assert.Equal(t, model.StyleDialogue, created.Style)
	assert.False(t, created.Completed)
	require.Len(t, created.Chapters, 2)

	w := env.do(t, http.MethodGet, "/api/v1/plans/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.PlanResponse](t, w)
	assert.Equal(t, created.ID, got.ID)
	for _, ch := range got.Chapters {
		assert.Equal(t, model.ChapterIdle, ch.State)
	}
}

func TestCreatePlan_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/plans", map[string]any{"length": "8분"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/plans", map[string]any{"topic": "고양이", "style": "poem"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.ErrCodeBadRequest, decode[api.ErrorResponse](t, w).Code)

	env.planner.AssertNotCalled(t, "PlanChapters", mock.Anything, mock.Anything)
}

func TestCreatePlan_ContractViolationIsLogged(t *testing.T) {
	env := newTestEnv(t)
	env.planner.On("PlanChapters", mock.Anything, mock.Anything).
		Return(nil, model.NewContractViolation(model.StageOutline, "chapters", "expected 2 chapters, got 3")).Once()

	w := env.do(t, http.MethodPost, "/api/v1/plans", map[string]any{"topic": "고양이", "length": "8분"}, "X-Client-ID", "client-1")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, api.ErrCodeContractViolation, decode[api.ErrorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, "/api/v1/clients/client-1/errors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Errors []repository.ErrorEntry `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, model.StageOutline, body.Errors[0].Stage)
}

func TestGetPlan_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/plans/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateChapter_Sequential(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	base := "/api/v1/plans/" + plan.ID + "/chapters/"

	w := env.do(t, http.MethodPost, base+"chapter-2/generate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, base+"unknown/generate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.generator.On("GenerateChapterScript", mock.Anything, mock.MatchedBy(func(r service.ScriptRequest) bool {
		return r.Chapter.ID == "chapter-1" && len(r.AllChapters) == 2
	})).Return(chapterScript(), nil).Once()

	w = env.do(t, http.MethodPost, base+"chapter-1/generate", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	started := decode[api.GenerateResponse](t, w)
	assert.Equal(t, model.ChapterGenerating, started.State)
	assert.Equal(t, "chapter-1", started.ChapterID)

	task := env.waitTask(t, started.TaskID.String())
	assert.Equal(t, taskmanager.TaskStatusCompleted, task.Status)

	got := decode[api.PlanResponse](t, env.do(t, http.MethodGet, "/api/v1/plans/"+plan.ID, nil))
	assert.Equal(t, model.ChapterDone, got.Chapters[0].State)
	assert.Len(t, got.Chapters[0].Script, 2)
	assert.Equal(t, model.ChapterIdle, got.Chapters[1].State)

	w = env.do(t, http.MethodPost, base+"chapter-1/generate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGenerateChapter_FailureIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)

	env.generator.On("GenerateChapterScript", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("AI generation failed: 429 quota exceeded")).Once()

	w := env.do(t, http.MethodPost, "/api/v1/plans/"+plan.ID+"/chapters/chapter-1/generate", nil, "X-Client-ID", "client-7")
	require.Equal(t, http.StatusAccepted, w.Code)
	task := env.waitTask(t, decode[api.GenerateResponse](t, w).TaskID.String())
	assert.Equal(t, taskmanager.TaskStatusFailed, task.Status)

	w = env.do(t, http.MethodGet, "/api/v1/plans/"+plan.ID+"/chapters/chapter-1/failure", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var failure struct {
		Failure model.ChapterFailure `json:"failure"`
		Details string               `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failure))
	assert.Equal(t, model.CauseQuota, failure.Failure.Cause)
	assert.Contains(t, failure.Details, "아침 햇살")

	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/api/v1/clients/client-7/errors", nil)
		var body struct {
			Errors []repository.ErrorEntry `json:"errors"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return len(body.Errors) == 1 && body.Errors[0].Failure != nil && body.Errors[0].PlanID == plan.ID
	}, 3*time.Second, 10*time.Millisecond)

	w = env.do(t, http.MethodGet, "/api/v1/plans/"+plan.ID+"/chapters/chapter-2/failure", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelTask(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)

	env.generator.On("GenerateChapterScript", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled).Once()

	w := env.do(t, http.MethodPost, "/api/v1/plans/"+plan.ID+"/chapters/chapter-1/generate", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	taskID := decode[api.GenerateResponse](t, w).TaskID.String()

	w = env.do(t, http.MethodPost, "/api/v1/plans/"+plan.ID+"/chapters/chapter-1/generate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	task := env.waitTask(t, taskID)
	assert.Equal(t, taskmanager.TaskStatusCancelled, task.Status)

	got := decode[api.PlanResponse](t, env.do(t, http.MethodGet, "/api/v1/plans/"+plan.ID, nil))
	assert.Equal(t, model.ChapterFailed, got.Chapters[0].State)
	require.NotNil(t, got.Chapters[0].LastFailure)
	assert.Equal(t, model.CauseCanceled, got.Chapters[0].LastFailure.Cause)

	w = env.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTaskLookupErrors(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/tasks/6f1c1f5e-9a54-4a56-8a43-3f8f1d7c0b11", nil).Code)
}

func TestInputs(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/clients/c1/inputs", repository.FormInputs{
		Transcript: "안녕하세요",
		Category:   "브이로그",
		Length:     "8분",
		Style:      "narration",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/clients/c1/inputs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	in := decode[repository.FormInputs](t, w)
	assert.Equal(t, "안녕하세요", in.Transcript)
	assert.Equal(t, "8분", in.Length)
	assert.Equal(t, "narration", in.Style)

	w = env.do(t, http.MethodPut, "/api/v1/clients/c1/inputs", repository.FormInputs{Style: "poem"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateProvider(t *testing.T) {
	env := newTestEnv(t)
	env.provider.On("Model").Return("gemini-2.5-flash")
	env.provider.On("Ping", mock.Anything).Return(nil).Once()
	env.provider.On("Ping", mock.Anything).Return(errors.New("401 unauthorized: invalid api key")).Once()

	w := env.do(t, http.MethodPost, "/api/v1/provider/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"model":"gemini-2.5-flash"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/provider/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Valid bool   `json:"valid"`
		Cause string `json:"cause"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, string(model.CauseAuth), resp.Cause)
}

func TestAnalyzeAndIdeas(t *testing.T) {
	env := newTestEnv(t)
	analysis := &model.AnalysisResult{
		Keywords: []string{"고양이"},
		Intent:   []model.StructuredContent{{Title: "힐링", Description: "편안함"}},
	}
	env.analyzer.On("AnalyzeTranscript", mock.Anything, "고양이가 잔다", "브이로그", "").Return(analysis, nil).Once()
	env.analyzer.On("SuggestIdeas", mock.Anything, mock.Anything, "브이로그", "산책").Return([]string{"고양이 산책 브이로그"}, nil).Once()

	w := env.do(t, http.MethodPost, "/api/v1/analysis", map[string]any{"transcript": "고양이가 잔다", "category": "브이로그"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"고양이"}, decode[model.AnalysisResult](t, w).Keywords)

	w = env.do(t, http.MethodPost, "/api/v1/ideas", map[string]any{"analysis": analysis, "category": "브이로그", "keyword": "산책"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ideas":["고양이 산책 브이로그"]}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/analysis", map[string]any{"category": "브이로그"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

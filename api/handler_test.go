package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/cache"
	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/solver"
	"github.com/wyfcoding/demaxmin/xerrors"
)

type memoryRepo struct {
	mu      sync.Mutex
	records map[string]*solver.SolutionRecord
}

func (r *memoryRepo) Save(_ context.Context, rec *solver.SolutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *memoryRepo) Find(_ context.Context, id string) (*solver.SolutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		return rec, nil
	}
	return nil, xerrors.ErrSolutionNotFound
}

func (r *memoryRepo) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Detail string          `json:"detail"`
	Data   json.RawMessage `json:"data"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := cache.NewBigCache(time.Minute, config.BigCacheConfig{Shards: 4, CleanWindow: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cfg := config.SolverConfig{
		MaxDimension:     15,
		OriginLabel:      "Fábrica",
		DestinationLabel: "Ciudad",
		SupplyHeader:     "Oferta",
		DemandHeader:     "Demanda",
		SessionTTL:       time.Minute,
		BatchConcurrency: 2,
		MaxBatchSize:     2,
	}
	svc := solver.NewService(cfg, solver.NewSessionStore(c, time.Minute), logging.NewLogger("demaxmin", "test"),
		solver.WithRepository(&memoryRepo{records: make(map[string]*solver.SolutionRecord)}))

	r := gin.New()
	RegisterRoutes(r, NewHandler(svc))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

const tiedDemand = `{"costs":[[4,6],[8,2]],"supply":[20,30],"demand":[25,25]}`

func TestProblemWorkflow(t *testing.T) {
	r := newRouter(t)

	status, env := do(t, r, http.MethodPost, "/v1/problems", `{"costs":[[1,2],[3,4]],"supply":[5,5],"demand":[12,10]}`)
	require.Equal(t, http.StatusCreated, status)
	var problem ProblemResponse
	require.NoError(t, json.Unmarshal(env.Data, &problem))
	assert.Equal(t, "origin", string(problem.Dummy))
	assert.Equal(t, []string{"Fábrica 1", "Fábrica 2", "Fábrica F"}, problem.Origins)
	assert.Equal(t, []string{"", "Ciudad 1", "Ciudad 2", "Oferta"}, problem.Table[0])
	assert.Equal(t, []string{"Demanda", "12", "10", "22"}, problem.Table[len(problem.Table)-1])

	status, _ = do(t, r, http.MethodGet, "/v1/problems/"+problem.ID, "")
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, r, http.MethodPost, "/v1/problems/"+problem.ID+"/solve", "")
	require.Equal(t, http.StatusOK, status)
	var res solver.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "Z = 1(5) + 4(5) + 0(7) + 0(5) = 25", res.Expression)

	status, env = do(t, r, http.MethodGet, "/v1/solutions/"+res.ID, "")
	require.Equal(t, http.StatusOK, status)
	var stored solver.Result
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, res.Expression, stored.Expression)

	status, env = do(t, r, http.MethodGet, "/v1/problems/"+problem.ID, "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &problem))
	assert.Equal(t, res.ID, problem.SolutionID)

	status, _ = do(t, r, http.MethodDelete, "/v1/problems/"+problem.ID, "")
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, r, http.MethodGet, "/v1/problems/"+problem.ID, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 404101, env.Code)
}

func TestCreateProblemValidation(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"digits in label", `{"origin_label":"Planta 2","costs":[[1]],"supply":[1],"demand":[1]}`, http.StatusBadRequest, 400103},
		{"missing cost", `{"costs":[[1,null]],"supply":[1],"demand":[1,1]}`, http.StatusBadRequest, 400101},
		{"negative demand", `{"costs":[[1]],"supply":[1],"demand":[-1]}`, http.StatusBadRequest, 400101},
		{"no costs", `{"supply":[1],"demand":[1]}`, http.StatusBadRequest, 400101},
		{"malformed json", `{"costs":`, http.StatusBadRequest, 400101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, r, http.MethodPost, "/v1/problems", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestSolveOnce(t *testing.T) {
	r := newRouter(t)

	status, env := do(t, r, http.MethodPost, "/v1/solve", tiedDemand)
	require.Equal(t, http.StatusOK, status)
	var res solver.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "Z = 4(20) + 8(5) + 2(25) = 170", res.Expression)
	assert.Equal(t, []string{"4(20)", "6"}, res.Table[0])
}

func TestSolveBatch(t *testing.T) {
	r := newRouter(t)

	body := `{"problems":[` + tiedDemand + `,{"costs":[[1]],"supply":[1],"demand":[1,2]}]}`
	status, env := do(t, r, http.MethodPost, "/v1/solve/batch", body)
	require.Equal(t, http.StatusOK, status)

	var batch BatchResponse
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Nil(t, batch.Items[0].Error)
	require.NotNil(t, batch.Items[1].Error)
	assert.Equal(t, 400101, batch.Items[1].Error.Code)

	body = `{"problems":[` + strings.Repeat(tiedDemand+",", 2) + tiedDemand + `]}`
	status, env = do(t, r, http.MethodPost, "/v1/solve/batch", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 400104, env.Code)
}

func TestGetSolutionNotFound(t *testing.T) {
	r := newRouter(t)
	status, env := do(t, r, http.MethodGet, "/v1/solutions/SOL1", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 404102, env.Code)
}

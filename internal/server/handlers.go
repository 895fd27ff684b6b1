package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/encoder"
	"github.com/blackwell-systems/cartrules/internal/rules"
	"github.com/blackwell-systems/cartrules/internal/runs"
	"github.com/blackwell-systems/cartrules/internal/store"
)

// Error kinds returned in the "kind" field of error responses.
const (
	kindBadRequest       = "bad_request"
	kindEncoding         = "encoding"
	kindInvalidParameter = "invalid_parameter"
	kindMissingSupport   = "missing_support"
	kindNotFound         = "not_found"
	kindInternal         = "internal"
)

// mineRequest is the body of POST /v1/mine. Exactly one of Dataset and
// Transactions must be set.
type mineRequest struct {
	Dataset       string          `json:"dataset"`
	Transactions  json.RawMessage `json:"transactions"`
	MinSupport    *float64        `json:"min_support"`
	MinConfidence *float64        `json:"min_confidence"`
	MinLift       float64         `json:"min_lift"`
	MaxLen        int             `json:"max_len"`
	Save          bool            `json:"save"`
}

type itemsetView struct {
	Items   []string `json:"items"`
	Count   int      `json:"count"`
	Support float64  `json:"support"`
}

type mineResponse struct {
	Dataset      string              `json:"dataset"`
	Transactions int                 `json:"transactions"`
	Itemsets     []itemsetView       `json:"itemsets"`
	Rules        []rules.Rule        `json:"rules"`
	Levels       []apriori.LevelStat `json:"levels"`
	RunID        string              `json:"run_id,omitempty"`
	ElapsedMS    int64               `json:"elapsed_ms"`
}

type explainRequest struct {
	Dataset      string          `json:"dataset"`
	Transactions json.RawMessage `json:"transactions"`
	Antecedent   []string        `json:"antecedent"`
	Consequent   []string        `json:"consequent"`
}

type explainResponse struct {
	Rule           rules.Rule           `json:"rule"`
	Interpretation rules.Interpretation `json:"interpretation"`
}

type datasetView struct {
	Name         string    `json:"name"`
	Source       string    `json:"source,omitempty"`
	LoadedAt     time.Time `json:"loaded_at"`
	Transactions int       `json:"transactions"`
	Items        int       `json:"items"`
}

type runView struct {
	ID            string    `json:"id"`
	Dataset       string    `json:"dataset"`
	CreatedAt     time.Time `json:"created_at"`
	MinSupport    float64   `json:"min_support"`
	MinConfidence float64   `json:"min_confidence"`
	Transactions  int       `json:"transactions"`
	Itemsets      int       `json:"itemsets"`
	Rules         int       `json:"rules"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	var req mineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ds, err := s.requestDataset(req.Dataset, req.Transactions)
	if err != nil {
		s.writeError(w, err)
		return
	}

	p := s.opts.Defaults
	if req.MinSupport != nil {
		p.MinSupport = *req.MinSupport
	}
	if req.MinConfidence != nil {
		p.MinConfidence = *req.MinConfidence
	}
	if req.MinLift != 0 {
		p.MinLift = req.MinLift
	}
	if req.MaxLen != 0 {
		p.MaxLen = req.MaxLen
	}
	p.OnLevel = nil

	report, err := s.analyzer.Analyze(r.Context(), ds, p)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := mineResponse{
		Dataset:      report.Dataset,
		Transactions: report.Transactions,
		Itemsets:     make([]itemsetView, 0, report.Result.Len()),
		Rules:        report.Rules,
		Levels:       report.Result.Levels,
		ElapsedMS:    report.Elapsed.Milliseconds(),
	}
	for _, is := range report.Result.Itemsets {
		resp.Itemsets = append(resp.Itemsets, itemsetView{Items: is.Items, Count: is.Count, Support: is.Support()})
	}

	if req.Save {
		if s.runs == nil {
			s.writeError(w, badRequest("saving runs requires a database"))
			return
		}
		run, err := s.runs.Save(runs.NewArchive(report.Dataset, report.Result, report.Rules, p.MinConfidence, p.MinLift, p.MaxLen))
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.RunID = run.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ds, err := s.requestDataset(req.Dataset, req.Transactions)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rule, err := s.analyzer.Explain(ds, req.Antecedent, req.Consequent)
	if err != nil {
		var ee *encoder.EncodingError
		if !errors.As(err, &ee) {
			err = badRequest(err.Error())
		}
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, explainResponse{Rule: rule, Interpretation: rules.Interpret(rule)})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []datasetView{})
		return
	}

	infos, err := s.store.ListDatasets()
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]datasetView, 0, len(infos))
	for _, info := range infos {
		out = append(out, datasetView{
			Name:         info.Name,
			Source:       info.Source,
			LoadedAt:     info.LoadedAt,
			Transactions: info.Transactions,
			Items:        info.Items,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []runView{})
		return
	}

	list, err := s.runs.List()
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]runView, 0, len(list))
	for _, run := range list {
		out = append(out, runView{
			ID:            run.ID,
			Dataset:       run.Dataset,
			CreatedAt:     run.CreatedAt,
			MinSupport:    run.MinSupport,
			MinConfidence: run.MinConfidence,
			Transactions:  run.Transactions,
			Itemsets:      run.Itemsets,
			Rules:         run.Rules,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, fmt.Errorf("run %s %w", chi.URLParam(r, "id"), store.ErrNotFound))
		return
	}

	a, err := s.runs.Load(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// requestDataset resolves the transactions of a request body: inline
// transactions in the dataset file JSON layout, or a stored dataset name.
func (s *Server) requestDataset(name string, raw json.RawMessage) (*dataset.Dataset, error) {
	hasInline := len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	switch {
	case hasInline && name != "":
		return nil, badRequest("set either dataset or transactions, not both")
	case hasInline:
		ds, err := dataset.Read(bytes.NewReader(raw), dataset.FormatJSON, "request")
		if err != nil {
			return nil, badRequest(err.Error())
		}
		return s.analyzer.Canonicalize(ds), nil
	case name != "":
		if s.store == nil {
			return nil, fmt.Errorf("dataset %s %w", name, store.ErrNotFound)
		}
		return s.store.GetDataset(name)
	default:
		return nil, badRequest("request must set dataset or transactions")
	}
}

// requestError is a client mistake reported as 400 bad_request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Kind:  kindBadRequest,
		})
		return false
	}
	return true
}

// writeError maps err to a status code and error kind.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		ipe *apriori.InvalidParameterError
		ee  *encoder.EncodingError
		mse *rules.MissingSupportError
		re  *requestError
	)

	status, kind := http.StatusInternalServerError, kindInternal
	switch {
	case errors.As(err, &ipe):
		status, kind = http.StatusBadRequest, kindInvalidParameter
	case errors.As(err, &ee):
		status, kind = http.StatusBadRequest, kindEncoding
	case errors.As(err, &mse):
		status, kind = http.StatusBadRequest, kindMissingSupport
	case errors.As(err, &re):
		status, kind = http.StatusBadRequest, kindBadRequest
	case errors.Is(err, store.ErrNotFound):
		status, kind = http.StatusNotFound, kindNotFound
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

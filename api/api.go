// Package api implements spec.md §6's request/response boundary: one
// gorilla/mux-routed HTTP endpoint per operation (query, execute,
// commit, validate, run_genesis, upgrade). This is the "request
// decoding and reply encoding" layer spec.md §1 names as an external
// collaborator, not part of the core — it decodes JSON, calls straight
// into engine.State, and re-encodes the result, holding no business
// logic of its own (SPEC_FULL.md §6).
package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/casper-ee/execengine/api/restutil"
	"github.com/casper-ee/execengine/engine"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/tx"
)

var logger = log.New("pkg", "api")

// API wraps an engine.State with the HTTP boundary spec.md §6 describes.
type API struct {
	engine *engine.State
}

// New returns the engine's router: one POST route per spec.md §6
// operation, mounted at its lower-cased name.
func New(e *engine.State) *mux.Router {
	a := &API{engine: e}
	router := mux.NewRouter()
	router.Path("/query").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(a.handleQuery))
	router.Path("/execute").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(a.handleExecute))
	router.Path("/commit").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(a.handleCommit))
	router.Path("/validate").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(a.handleValidate))
	router.Path("/run_genesis").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(a.handleRunGenesis))
	router.Path("/upgrade").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(a.handleUpgrade))
	return router
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) error {
	var req QueryRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(err)
	}
	stateHash, err := addressJSON(req.StateHash)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "state_hash"))
	}
	baseKey, err := keyJSON(req.BaseKey)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "base_key"))
	}
	result := a.engine.Query(stateHash, baseKey, req.Path)
	if result.Kind != engine.QuerySuccess {
		return restutil.WriteJSON(w, QueryResponse{Success: false, Message: result.Message})
	}
	enc, err := encodeValue(result.Value)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, QueryResponse{Success: true, ValueHex: enc})
}

func (a *API) handleExecute(w http.ResponseWriter, r *http.Request) error {
	var req ExecuteRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(err)
	}
	parent, err := addressJSON(req.ParentStateHash)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "parent_state_hash"))
	}
	deploys := make([]*tx.Deploy, len(req.Deploys))
	for i, dj := range req.Deploys {
		d, err := dj.toDeploy()
		if err != nil {
			return restutil.BadRequest(errors.WithMessagef(err, "deploy %d", i))
		}
		deploys[i] = d
	}
	resp, err := a.engine.Execute(engine.ExecuteRequest{
		ParentStateHash: parent,
		BlockTime:       req.BlockTime,
		ProtocolVersion: protocol.Version(req.ProtocolVersion),
		Deploys:         deploys,
	})
	if err != nil {
		logger.Error("execute request failed", "err", err)
		return errors.WithMessage(err, "execute")
	}
	if resp.MissingParent {
		return restutil.WriteJSON(w, ExecuteResponse{MissingParent: true, ParentHash: encodeAddress(resp.ParentHash)})
	}
	results := make([]deployResultJSON, len(resp.DeployResults))
	for i, dr := range resp.DeployResults {
		effects, err := effectsJSON(dr.Effects)
		if err != nil {
			return err
		}
		results[i] = deployResultJSON{
			Discriminant: string(dr.Discriminant),
			GasUsed:      dr.GasUsed,
			Effects:      effects,
			Message:      dr.Message,
		}
	}
	return restutil.WriteJSON(w, ExecuteResponse{DeployResults: results})
}

func (a *API) handleCommit(w http.ResponseWriter, r *http.Request) error {
	var req CommitRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(err)
	}
	prestate, err := addressJSON(req.PrestateHash)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "prestate_hash"))
	}
	folded, err := decodeCommitEffects(req.Effects)
	if err != nil {
		return restutil.BadRequest(err)
	}
	resp := a.engine.Commit(engine.CommitRequest{
		PrestateHash:    prestate,
		Effects:         folded,
		ProtocolVersion: protocol.Version(req.ProtocolVersion),
	})
	return restutil.WriteJSON(w, commitResponseJSON(resp))
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) error {
	var req ValidateRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(err)
	}
	wasm, err := hexDecodeField(req.WasmHex)
	if err != nil {
		return restutil.BadRequest(err)
	}
	result := a.engine.Validate(wasm)
	return restutil.WriteJSON(w, ValidateResponse{Success: result.Valid, Message: result.Message})
}

func (a *API) handleRunGenesis(w http.ResponseWriter, r *http.Request) error {
	var req GenesisConfigRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(err)
	}
	gen, err := req.toGenesis(a.engine.Config())
	if err != nil {
		return restutil.BadRequest(err)
	}
	result := a.engine.RunGenesis(gen)
	return restutil.WriteJSON(w, genesisResponseJSON(result))
}

func (a *API) handleUpgrade(w http.ResponseWriter, r *http.Request) error {
	var req UpgradeRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(err)
	}
	gen, err := req.toGenesis(a.engine.Config())
	if err != nil {
		return restutil.BadRequest(err)
	}
	parent, err := addressJSON(req.ParentStateHash)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "parent_state_hash"))
	}
	result := a.engine.Upgrade(gen, parent)
	return restutil.WriteJSON(w, genesisResponseJSON(result))
}

package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/casper-ee/execengine/cry"
	"github.com/casper-ee/execengine/engine"
	"github.com/casper-ee/execengine/genesis"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/transform"
	"github.com/casper-ee/execengine/tx"
	"github.com/casper-ee/execengine/value"
)

// addressJSON decodes a 0x-prefixed 32-byte hex string into a
// key.Address, the shape every "*_hash"/"address" field in spec.md §6's
// request/response tables takes on the wire.
func addressJSON(s string) (key.Address, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return key.Address{}, errors.WithMessage(err, "decode address")
	}
	if len(b) != key.Length {
		return key.Address{}, errors.Errorf("address must be %d bytes, got %d", key.Length, len(b))
	}
	return key.BytesToAddress(b), nil
}

func encodeAddress(a key.Address) string { return hexutil.Encode(a[:]) }

// keyJSON decodes the 34-byte tag||address||rights encoding key.Bytes
// produces (spec.md §6's canonical Key encoding).
func keyJSON(s string) (key.Key, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return key.Key{}, errors.WithMessage(err, "decode key")
	}
	k, err := key.Decode(b)
	if err != nil {
		return key.Key{}, errors.WithMessage(err, "decode key")
	}
	return k, nil
}

func encodeKey(k key.Key) string { return hexutil.Encode(k.Bytes()) }

func encodeValue(v value.Value) (string, error) {
	enc, err := value.Encode(v)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(enc), nil
}

// QueryRequest is spec.md §6's "query" operation request.
type QueryRequest struct {
	StateHash string   `json:"state_hash"`
	BaseKey   string   `json:"base_key"`
	Path      []string `json:"path"`
}

// QueryResponse is spec.md §6's "query" operation response.
type QueryResponse struct {
	Success  bool   `json:"success"`
	ValueHex string `json:"value_hex,omitempty"`
	Message  string `json:"message,omitempty"`
}

// codeJSON is the wire shape of a tx.ExecutableCode: exactly one of
// WasmHex or StoredTargetHex is set, plus already-canonically-encoded
// argument bytes in ArgsHex (the same bytes get_arg hands bytecode).
type codeJSON struct {
	WasmHex         string   `json:"wasm_hex,omitempty"`
	StoredTargetHex string   `json:"stored_target_hex,omitempty"`
	ArgsHex         []string `json:"args_hex,omitempty"`
}

func (c codeJSON) toExecutableCode() (tx.ExecutableCode, error) {
	args := make([][]byte, len(c.ArgsHex))
	for i, a := range c.ArgsHex {
		b, err := hexutil.Decode(a)
		if err != nil {
			return tx.ExecutableCode{}, errors.WithMessagef(err, "decode arg %d", i)
		}
		args[i] = b
	}
	if c.StoredTargetHex != "" {
		target, err := keyJSON(c.StoredTargetHex)
		if err != nil {
			return tx.ExecutableCode{}, err
		}
		return tx.NewStoredContractRaw(target, args), nil
	}
	wasm, err := hexutil.Decode(c.WasmHex)
	if err != nil {
		return tx.ExecutableCode{}, errors.WithMessage(err, "decode wasm")
	}
	return tx.NewModuleBytesRaw(wasm, args), nil
}

// approvalJSON is the wire shape of a tx.Approval.
type approvalJSON struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// deployJSON is the wire shape of a Deploy (spec.md §6: "address:32,
// authorization_keys:[32], deploy_hash:32, session, payment,
// gas_price"). deploy_hash and authorization_keys are both derived —
// the former from the other fields, the latter from Approvals — so
// only the fields a caller actually supplies appear here.
type deployJSON struct {
	Account      string         `json:"account"`
	Timestamp    uint64         `json:"timestamp"`
	TTL          uint64         `json:"ttl"`
	GasPrice     uint64         `json:"gas_price"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Payment      codeJSON       `json:"payment"`
	Session      codeJSON       `json:"session"`
	Approvals    []approvalJSON `json:"approvals,omitempty"`
}

func (d deployJSON) toDeploy() (*tx.Deploy, error) {
	account, err := addressJSON(d.Account)
	if err != nil {
		return nil, errors.WithMessage(err, "account")
	}
	payment, err := d.Payment.toExecutableCode()
	if err != nil {
		return nil, errors.WithMessage(err, "payment")
	}
	session, err := d.Session.toExecutableCode()
	if err != nil {
		return nil, errors.WithMessage(err, "session")
	}
	b := tx.NewDeployBuilder().Account(account).Timestamp(d.Timestamp).TTL(d.TTL).
		GasPrice(d.GasPrice).Payment(payment).Session(session)
	for i, dep := range d.Dependencies {
		h, err := addressJSON(dep)
		if err != nil {
			return nil, errors.WithMessagef(err, "dependency %d", i)
		}
		b.Dependency(cry.Hash(h))
	}
	for i, a := range d.Approvals {
		signer, err := addressJSON(a.Signer)
		if err != nil {
			return nil, errors.WithMessagef(err, "approval %d signer", i)
		}
		sig, err := hexutil.Decode(a.Signature)
		if err != nil {
			return nil, errors.WithMessagef(err, "approval %d signature", i)
		}
		b.Approval(tx.Approval{Signer: signer, Signature: sig})
	}
	return b.Build(), nil
}

// deployResultJSON is the wire shape of a receipt.DeployResult.
type deployResultJSON struct {
	Discriminant string            `json:"discriminant"`
	GasUsed      uint64            `json:"gas_used"`
	Effects      map[string]string `json:"effects,omitempty"`
	Message      string            `json:"message,omitempty"`
}

func encodeTransform(tr transform.Transform) (string, error) {
	switch tr.Kind {
	case transform.Identity:
		return "identity", nil
	case transform.WriteKind:
		enc, err := encodeValue(tr.Value)
		if err != nil {
			return "", err
		}
		return "write:" + enc, nil
	default:
		// Effects surfaced in a DeployResult/GenesisResponse are always
		// already-folded per-key transforms; at genesis/deploy-success
		// time they are overwhelmingly Write (every supplemented
		// account/purse/contract install is a Write), so only Write and
		// Identity round-trip through the wire losslessly today. Other
		// kinds encode as the transform's Reason string: the failure
		// reason for a Failure, and an empty string for the Add kinds,
		// since the RPC boundary is a thin adapter and not the place to
		// grow a second copy of transform.Compose's semantics.
		return tr.Reason, nil
	}
}

func effectsJSON(effects map[key.Key]transform.Transform) (map[string]string, error) {
	if effects == nil {
		return nil, nil
	}
	out := make(map[string]string, len(effects))
	for k, tr := range effects {
		enc, err := encodeTransform(tr)
		if err != nil {
			return nil, err
		}
		out[encodeKey(k)] = enc
	}
	return out, nil
}

// bondedValidatorJSON is the wire shape of a state.ValidatorBond.
type bondedValidatorJSON struct {
	PubKey string `json:"pubkey"`
	Stake  uint64 `json:"stake"`
}

// commitTransformJSON is the wire shape of a transform.Transform
// submitted in a CommitRequest's effects list — spec.md §6's
// `(Key,Transform)` pair.
type commitTransformJSON struct {
	Kind     string   `json:"kind"`
	ValueHex string   `json:"value_hex,omitempty"`
	AddInt   int64    `json:"add_int,omitempty"`
	AddUInt  string   `json:"add_uint,omitempty"`
	AddKeys  []string `json:"add_keys,omitempty"` // alternating name, key_hex pairs
	Reason   string   `json:"reason,omitempty"`
}

func (c commitTransformJSON) toTransform() (transform.Transform, error) {
	switch c.Kind {
	case "identity":
		return transform.NewIdentity(), nil
	case "write":
		b, err := hexutil.Decode(c.ValueHex)
		if err != nil {
			return transform.Transform{}, errors.WithMessage(err, "decode value")
		}
		v, _, err := value.Decode(b)
		if err != nil {
			return transform.Transform{}, errors.WithMessage(err, "decode value")
		}
		return transform.NewWrite(v), nil
	case "add_int":
		return transform.NewAddInt(c.AddInt), nil
	case "add_uint":
		u, err := uint256FromDecimal(c.AddUInt)
		if err != nil {
			return transform.Transform{}, err
		}
		return transform.NewAddUInt(u), nil
	case "add_keys":
		if len(c.AddKeys)%2 != 0 {
			return transform.Transform{}, errors.New("add_keys must be alternating name/key_hex pairs")
		}
		var entries []value.MapEntry
		for i := 0; i < len(c.AddKeys); i += 2 {
			k, err := keyJSON(c.AddKeys[i+1])
			if err != nil {
				return transform.Transform{}, err
			}
			entries = append(entries, value.MapEntry{Name: c.AddKeys[i], Key: k})
		}
		return transform.NewAddKeys(entries), nil
	case "failure":
		return transform.NewFailure(c.Reason), nil
	default:
		return transform.Transform{}, errors.Errorf("unknown transform kind %q", c.Kind)
	}
}

func uint256FromDecimal(s string) (*uint256.Int, error) {
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.WithMessage(err, "decode uint256")
	}
	return u, nil
}

// CommitRequest is spec.md §6's "commit" operation request.
type CommitRequest struct {
	PrestateHash    string                         `json:"prestate_hash"`
	Effects         map[string]commitTransformJSON `json:"effects"`
	ProtocolVersion uint32                         `json:"protocol_version"`
}

// CommitResponse is spec.md §6's "commit" operation response.
type CommitResponse struct {
	Kind             string                `json:"kind"`
	PoststateHash    string                `json:"poststate_hash,omitempty"`
	BondedValidators []bondedValidatorJSON `json:"bonded_validators,omitempty"`
	FailedKey        string                `json:"failed_key,omitempty"`
	Expected         string                `json:"expected,omitempty"`
	Actual           string                `json:"actual,omitempty"`
}

// ExecuteRequest is spec.md §6's "execute" operation request.
type ExecuteRequest struct {
	ParentStateHash string       `json:"parent_state_hash"`
	BlockTime       uint64       `json:"block_time"`
	ProtocolVersion uint32       `json:"protocol_version"`
	Deploys         []deployJSON `json:"deploys"`
}

// ExecuteResponse is spec.md §6's "execute" operation response.
type ExecuteResponse struct {
	MissingParent bool               `json:"missing_parent,omitempty"`
	ParentHash    string             `json:"parent_hash,omitempty"`
	DeployResults []deployResultJSON `json:"deploy_results,omitempty"`
}

// ValidateRequest is spec.md §6's "validate" operation request.
type ValidateRequest struct {
	WasmHex string `json:"wasm_hex"`
}

// ValidateResponse is spec.md §6's "validate" operation response.
type ValidateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// genesisAccountJSON/genesisValidatorJSON mirror
// genesis.Genesis's builder fields for the "run_genesis"/"upgrade" wire
// requests.
type genesisAccountJSON struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type genesisValidatorJSON struct {
	PubKey string `json:"pubkey"`
	Stake  uint64 `json:"stake"`
}

// GenesisConfigRequest is spec.md §6's "run_genesis" operation request
// ({genesis_config}); "upgrade" reuses the same shape plus a parent
// root (UpgradeRequest, below).
type GenesisConfigRequest struct {
	Accounts     []genesisAccountJSON   `json:"accounts"`
	Validators   []genesisValidatorJSON `json:"validators"`
	ConvRate     uint64                 `json:"conv_rate,omitempty"`
	PaymentLimit uint64                 `json:"payment_limit,omitempty"`
}

func (g GenesisConfigRequest) toGenesis(cfg protocol.Config) (*genesis.Genesis, error) {
	gen := genesis.NewDefault(cfg)
	if g.ConvRate != 0 {
		gen = gen.WithConvRate(g.ConvRate)
	}
	if g.PaymentLimit != 0 {
		gen = gen.WithPaymentLimit(g.PaymentLimit)
	}
	for i, a := range g.Accounts {
		addr, err := addressJSON(a.Address)
		if err != nil {
			return nil, errors.WithMessagef(err, "account %d", i)
		}
		gen = gen.WithAccount(addr, a.Balance)
	}
	for i, v := range g.Validators {
		pub, err := addressJSON(v.PubKey)
		if err != nil {
			return nil, errors.WithMessagef(err, "validator %d", i)
		}
		gen = gen.WithValidator(pub, v.Stake)
	}
	return gen, nil
}

// UpgradeRequest is spec.md §6's "upgrade" operation request
// ({upgrade_config}): the same genesis_config shape plus the root it
// upgrades atop.
type UpgradeRequest struct {
	GenesisConfigRequest
	ParentStateHash string `json:"parent_state_hash"`
}

// GenesisResponse is shared by "run_genesis" and "upgrade".
type GenesisResponse struct {
	Success       bool              `json:"success"`
	PostStateHash string            `json:"post_state_hash,omitempty"`
	Effect        map[string]string `json:"effect,omitempty"`
	Message       string            `json:"message,omitempty"`
}

func hexDecodeField(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.WithMessage(err, "decode hex field")
	}
	return b, nil
}

// decodeCommitEffects turns the wire's (key_hex -> commitTransformJSON)
// map into the folded map[key.Key]transform.Transform Store.Apply
// expects — commit's effects are already folded by whoever ran execute
// (spec.md §4.F: the engine itself never folds across a request), so
// this is a pure decode, no further composition.
func decodeCommitEffects(in map[string]commitTransformJSON) (map[key.Key]transform.Transform, error) {
	out := make(map[key.Key]transform.Transform, len(in))
	for keyHex, trJSON := range in {
		k, err := keyJSON(keyHex)
		if err != nil {
			return nil, errors.WithMessagef(err, "effect key %q", keyHex)
		}
		tr, err := trJSON.toTransform()
		if err != nil {
			return nil, errors.WithMessagef(err, "effect %q", keyHex)
		}
		out[k] = tr
	}
	return out, nil
}

func commitResultKindJSON(kind state.CommitResultKind) string {
	switch kind {
	case state.CommitSuccess:
		return "success"
	case state.CommitRootNotFound:
		return "root_not_found"
	case state.CommitKeyNotFound:
		return "key_not_found"
	case state.CommitTypeMismatch:
		return "type_mismatch"
	case state.CommitOverflow:
		return "overflow"
	default:
		return "storage_error"
	}
}

func commitResponseJSON(resp engine.CommitResponse) CommitResponse {
	out := CommitResponse{
		Kind:      commitResultKindJSON(resp.Kind),
		FailedKey: "",
		Expected:  resp.Expected,
		Actual:    resp.Actual,
	}
	if resp.Kind == state.CommitSuccess {
		out.PoststateHash = encodeAddress(resp.PoststateHash)
		for _, b := range resp.BondedValidators {
			out.BondedValidators = append(out.BondedValidators, bondedValidatorJSON{
				PubKey: encodeAddress(b.PubKey),
				Stake:  b.Stake,
			})
		}
	}
	if resp.FailedKey != (key.Key{}) {
		out.FailedKey = encodeKey(resp.FailedKey)
	}
	return out
}

func genesisResponseJSON(resp engine.GenesisResponse) GenesisResponse {
	if resp.Failed {
		return GenesisResponse{Success: false, Message: resp.Message}
	}
	effect, err := effectsJSON(resp.Effect)
	if err != nil {
		return GenesisResponse{Success: false, Message: err.Error()}
	}
	return GenesisResponse{
		Success:       true,
		PostStateHash: encodeAddress(resp.PoststateHash),
		Effect:        effect,
	}
}

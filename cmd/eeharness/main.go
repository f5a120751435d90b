// Command eeharness is the standalone file-driven CLI harness spec.md
// §1/§6 names as an external collaborator, not part of the core: it
// loads one or more WASM files, runs each as a single-deploy session
// against an in-memory genesis state, and prints one PASS/FAIL status
// line per file, matching the original CasperLabs test harness's
// convenience behavior of injecting a canned always-succeeds payment
// clause so a caller only has to supply session bytecode.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/casper-ee/execengine/builtin"
	"github.com/casper-ee/execengine/engine"
	"github.com/casper-ee/execengine/genesis"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/muxdb"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/tx"
)

var (
	addressFlag = cli.StringFlag{
		Name:  "address",
		Usage: "32-byte hex account address each WASM file is deployed from",
	}
	gasLimitFlag = cli.Uint64Flag{
		Name:  "gas-limit",
		Usage: "report FAIL for a file whose deploy uses more total gas than this",
		Value: 1_000_000,
	}
)

func main() {
	app := cli.App{
		Name:  "eeharness",
		Usage: "run one or more WASM session modules against a fresh genesis state",
		Flags: []cli.Flag{addressFlag, gasLimitFlag},
		Action: func(c *cli.Context) error {
			return run(c.String("address"), c.Uint64("gas-limit"), c.Args())
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "eeharness:", err)
		os.Exit(1)
	}
}

func run(addressHex string, gasLimit uint64, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("no WASM files given")
	}
	addrBytes, err := hexutil.Decode(addressHex)
	if err != nil {
		return fmt.Errorf("bad --address: %w", err)
	}
	addr := key.BytesToAddress(addrBytes)

	cfg := protocol.Default()
	db, err := muxdb.OpenMem()
	if err != nil {
		return fmt.Errorf("open in-memory store: %w", err)
	}
	store := state.New(db)
	eng := engine.NewState(store, cfg)

	gen := genesis.NewDefault(cfg).WithAccount(addr, 1_000_000_000)
	genResp := eng.RunGenesis(gen)
	if genResp.Failed {
		return fmt.Errorf("genesis failed: %s", genResp.Message)
	}
	root := genResp.PoststateHash

	failed := false
	for _, path := range files {
		status := runOne(eng, root, addr, gasLimit, path)
		fmt.Println(status)
		if status[:4] != "PASS" {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("one or more modules failed")
	}
	return nil
}

// alwaysSucceedsPayment is the canned payment clause the harness
// injects so a WASM file only needs to supply session logic: it calls
// mint's "main_purse" method, which resolves to the deploying account's
// own main purse — already funded at genesis — so the payment phase
// always has a spendable source without the harness shipping any
// payment bytecode of its own.
func alwaysSucceedsPayment() (tx.ExecutableCode, error) {
	args, err := builtin.EncodeCall("main_purse")
	if err != nil {
		return tx.ExecutableCode{}, err
	}
	return tx.NewStoredContractRaw(builtin.MintKey(), args), nil
}

func runOne(eng *engine.State, root key.Address, addr key.Address, gasLimit uint64, path string) string {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("FAIL %s: read: %v", path, err)
	}
	if res := eng.Validate(wasm); !res.Valid {
		return fmt.Sprintf("FAIL %s: validate: %s", path, res.Message)
	}
	session, err := tx.NewModuleBytes(wasm)
	if err != nil {
		return fmt.Sprintf("FAIL %s: encode session: %v", path, err)
	}
	payment, err := alwaysSucceedsPayment()
	if err != nil {
		return fmt.Sprintf("FAIL %s: encode payment: %v", path, err)
	}
	deploy := tx.NewDeployBuilder().
		Account(addr).
		Timestamp(0).
		TTL(3600).
		GasPrice(1).
		Payment(payment).
		Session(session).
		Build()

	resp, err := eng.Execute(engine.ExecuteRequest{
		ParentStateHash: root,
		BlockTime:       0,
		ProtocolVersion: protocol.Default().MinProtocolVersion,
		Deploys:         []*tx.Deploy{deploy},
	})
	if err != nil {
		return fmt.Sprintf("FAIL %s: execute: %v", path, err)
	}
	if resp.MissingParent {
		return fmt.Sprintf("FAIL %s: missing parent state", path)
	}
	result := resp.DeployResults[0]
	if !result.Succeeded() {
		return fmt.Sprintf("FAIL %s: %s: %s", path, result.Discriminant, result.Message)
	}
	if result.GasUsed > gasLimit {
		return fmt.Sprintf("FAIL %s: gas used %d exceeds --gas-limit %d", path, result.GasUsed, gasLimit)
	}
	return fmt.Sprintf("PASS %s (gas used: %d)", path, result.GasUsed)
}

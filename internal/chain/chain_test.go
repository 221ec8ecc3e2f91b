package chain

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type call struct {
	bin  string
	args []string
}

// fakeRunner returns canned output keyed by the first argument.
type fakeRunner struct {
	out   map[string]string
	err   map[string]error
	calls []call
}

func (f *fakeRunner) Output(_ context.Context, bin string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{bin: bin, args: args})
	key := args[0]
	if slices.Contains(args, "--raw") {
		key = "raw"
	}
	if err := f.err[key]; err != nil {
		return nil, err
	}
	return []byte(f.out[key]), nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestExportGenesis(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{out: map[string]string{
		"export-genesis-wasm":  "0x0061736d\n",
		"export-genesis-state": "0x00000000\n",
	}}

	files, err := ExportGenesis(context.Background(), r, GenesisOptions{
		Bin:    "/bin/collator",
		Chain:  "dev-spec.json",
		OutDir: dir,
	})
	if err != nil {
		t.Fatalf("ExportGenesis: %v", err)
	}

	if files.Wasm != filepath.Join(dir, "local-chain-wasm") {
		t.Errorf("wasm path = %q", files.Wasm)
	}
	if got := readFile(t, files.Wasm); got != "0x0061736d" {
		t.Errorf("wasm = %q", got)
	}
	if got := readFile(t, files.State); got != "0x00000000" {
		t.Errorf("state = %q", got)
	}

	want := []string{"export-genesis-wasm", "--chain", "dev-spec.json"}
	if len(r.calls) != 2 || !slices.Equal(r.calls[0].args, want) || r.calls[0].bin != "/bin/collator" {
		t.Errorf("unexpected calls %+v", r.calls)
	}
}

func TestExportGenesisCustomName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := &fakeRunner{out: map[string]string{}}

	files, err := ExportGenesis(context.Background(), r, GenesisOptions{
		Bin: "collator", Chain: "local", Name: "pendulum", OutDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if files.State != filepath.Join(dir, "pendulum-state") {
		t.Errorf("state path = %q", files.State)
	}
}

func TestExportGenesisFailure(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{err: map[string]error{"export-genesis-state": errors.New("boom")}}

	_, err := ExportGenesis(context.Background(), r, GenesisOptions{Bin: "c", Chain: "x", OutDir: dir})
	if err == nil || !strings.Contains(err.Error(), "export-genesis-state") {
		t.Fatalf("expected error naming the subcommand, got %v", err)
	}
}

func TestExportGenesisRequiresOptions(t *testing.T) {
	r := &fakeRunner{}
	for _, opts := range []GenesisOptions{
		{Chain: "x", OutDir: "/tmp"},
		{Bin: "c", OutDir: "/tmp"},
		{Bin: "c", Chain: "x"},
	} {
		if _, err := ExportGenesis(context.Background(), r, opts); err == nil {
			t.Errorf("%+v: expected error", opts)
		}
	}
	if len(r.calls) != 0 {
		t.Errorf("runner should not be called, got %d calls", len(r.calls))
	}
}

const plainSpec = `{
  "name": "Local Testnet",
  "para_id": 1000,
  "genesis": {
    "runtime": {
      "balances": {"balances": [["5Grw", 1152921504606846976]]},
      "parachainInfo": {"parachainId": 1000}
    }
  }
}`

func TestGenerateSpecs(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{out: map[string]string{
		"build-spec": plainSpec,
		"raw":        `{"genesis":{"raw":{}}}`,
	}}

	files, err := GenerateSpecs(context.Background(), r, SpecOptions{Bin: "collator", OutDir: dir})
	if err != nil {
		t.Fatalf("GenerateSpecs: %v", err)
	}

	var doc struct {
		ParaID  int `json:"para_id"`
		Genesis struct {
			Runtime struct {
				ParachainInfo struct {
					ParachainID int `json:"parachainId"`
				} `json:"parachainInfo"`
			} `json:"runtime"`
		} `json:"genesis"`
	}
	plain := readFile(t, files.Plain)
	if err := json.Unmarshal([]byte(plain), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ParaID != 2000 || doc.Genesis.Runtime.ParachainInfo.ParachainID != 2000 {
		t.Errorf("para id not patched: %+v", doc)
	}
	if !strings.Contains(plain, "1152921504606846976") {
		t.Error("large balance was not preserved exactly")
	}

	if got := readFile(t, files.Raw); got != `{"genesis":{"raw":{}}}` {
		t.Errorf("raw = %q", got)
	}

	if len(r.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(r.calls))
	}
	wantRaw := []string{"build-spec", "--chain", filepath.Join(dir, "local-chain-plain.json"), "--raw", "--disable-default-bootnode"}
	if !slices.Equal(r.calls[1].args, wantRaw) {
		t.Errorf("raw args = %v", r.calls[1].args)
	}
}

func TestGenerateSpecsInvalidPlain(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"build-spec": "not json"}}
	_, err := GenerateSpecs(context.Background(), r, SpecOptions{Bin: "c", OutDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(r.calls) != 1 {
		t.Errorf("raw build should not run, got %d calls", len(r.calls))
	}
}

func TestSetParaIDWithoutParachainInfo(t *testing.T) {
	out, err := SetParaID([]byte(`{"name":"relay"}`), 42)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["para_id"] != float64(42) {
		t.Errorf("para_id = %v", doc["para_id"])
	}
	if _, ok := doc["genesis"]; ok {
		t.Error("genesis should not be invented")
	}
}

func TestExecRunner(t *testing.T) {
	out, err := ExecRunner{}.Output(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello\n" {
		t.Errorf("output = %q", out)
	}

	_, err = ExecRunner{}.Output(context.Background(), "sh", "-c", "echo bad >&2; exit 3")
	if err == nil || !strings.Contains(err.Error(), "exit code 3: bad") {
		t.Errorf("expected exit error with stderr, got %v", err)
	}
}

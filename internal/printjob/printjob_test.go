package printjob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ppiankov/packingline/internal/audit"
	"github.com/ppiankov/packingline/internal/config"
	"github.com/ppiankov/packingline/internal/credential"
	"github.com/ppiankov/packingline/internal/journal"
	"github.com/ppiankov/packingline/internal/lbl"
	"github.com/ppiankov/packingline/internal/order"
	"github.com/ppiankov/packingline/internal/output"
	"github.com/ppiankov/packingline/internal/report"
	"github.com/ppiankov/packingline/internal/session"
)

const serial = "24-0001-0002"

type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeAudit) Record(e audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

type fakeJournal struct {
	records []journal.PrintRecord
	err     error
}

func (f *fakeJournal) Record(_ context.Context, rec journal.PrintRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.records = append(f.records, rec)
	return int64(len(f.records)), nil
}

type fixture struct {
	cfg     *config.Config
	dir     string
	audit   *fakeAudit
	journal *fakeJournal
	runner  *Runner
	sess    *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"reports", "triggers", "labels"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0750))
	}
	cfg := config.DefaultConfig()
	cfg.Paths.Reports = filepath.Join(dir, "reports")
	cfg.Paths.Triggers = filepath.Join(dir, "triggers")
	cfg.Outputs.Product = filepath.Join(dir, "labels", "product.txt")
	cfg.Outputs.Control4 = filepath.Join(dir, "labels", "c4.txt")
	cfg.Outputs.My2N = filepath.Join(dir, "labels", "my2n.txt")
	cfg.TriggerMapping = map[string]config.Products{
		config.GroupProduct:  {"PROD-A", "PROD-C4", "PROD-ALL"},
		config.GroupControl4: {"PROD-C4", "PROD-ALL"},
		config.GroupMy2N:     {"PROD-A", "PROD-ALL"},
	}

	f := &fixture{
		cfg:     cfg,
		dir:     dir,
		audit:   &fakeAudit{},
		journal: &fakeJournal{},
		sess:    session.New("line-1", credential.Identity{Surname: "Novak", GivenName: "Jan", Prefix: "NJ"}),
	}
	f.runner = NewRunner(Options{
		Config:  Static(cfg, "sha256:cfg"),
		Audit:   f.audit,
		Journal: f.journal,
	})
	return f
}

func workOrder(product string) *order.WorkOrder {
	return &order.WorkOrder{
		Code:      "P123",
		Product:   product,
		LabelPath: "P123.lbl",
		Lines: lbl.Lines{
			serial + `B=PROD_TRIG`,
			serial + `D="L Nazev","P Znacka balice","P Datum"`,
			serial + `E="IP Verso","XX","2024-05-01"`,
			serial + `I=C4_TRIG`,
			serial + `J="C Nazev","C Kod"`,
			serial + `K="Control4","C4-01"`,
		},
	}
}

func (f *fixture) writeReport(t *testing.T, content string) {
	t.Helper()
	path, err := report.Path(serial, f.cfg.Paths.Reports)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunProductAndMy2N(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, "My2N Token: OLD\nMy2N Token: Tok-42\n")

	res, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-A"), " 24-0001-0002 ")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, serial, res.Serial)
	assert.Equal(t, []string{"product", "my2n"}, res.Groups)
	assert.Equal(t, []string{"product", "my2n"}, res.Completed())

	assert.Equal(t, "\"L Nazev\",\"P Znacka balice\",\"P Datum\"\n\"IP Verso\",\"NJ\",\"2024-05-01\"\n",
		readFile(t, f.cfg.Outputs.Product))
	assert.Equal(t,
		`"L Vyrobni cislo dlouhe","L Bezpecnostni cislo","P Vyrobni cislo","P Bezpecnostni kod"`+"\n"+
			`"Serial number:","My2N Security Code:","24-0001-0002","Tok-42"`+"\n",
		readFile(t, f.cfg.Outputs.My2N))

	assert.FileExists(t, filepath.Join(f.cfg.Paths.Triggers, "PROD_TRIG"))
	assert.FileExists(t, filepath.Join(f.cfg.Paths.Triggers, report.TriggerMy2N))
	assert.NoFileExists(t, f.cfg.Outputs.Control4)

	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, "product", f.audit.entries[0].Branch)
	assert.Equal(t, audit.OutcomeOK, f.audit.entries[1].Outcome)
	assert.Equal(t, "NJ", f.audit.entries[0].Operator)
	assert.Equal(t, f.sess.ID, f.audit.entries[0].SessionID)
	assert.Equal(t, "sha256:cfg", f.audit.entries[0].ConfigHash)

	require.Len(t, f.journal.records, 1)
	assert.Equal(t, "ok", f.journal.records[0].Outcome)
}

func TestRunControl4DoesNotInjectPrefix(t *testing.T) {
	f := newFixture(t)
	res, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-C4"), serial)
	require.NoError(t, err)
	assert.Equal(t, []string{"product", "control4"}, res.Completed())
	assert.Equal(t, "\"C Nazev\",\"C Kod\"\n\"Control4\",\"C4-01\"\n", readFile(t, f.cfg.Outputs.Control4))
	assert.FileExists(t, filepath.Join(f.cfg.Paths.Triggers, "C4_TRIG"))
}

func TestRunFailingBranchKeepsEarlierOutput(t *testing.T) {
	f := newFixture(t)
	// no report for my2n

	res, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-ALL"), serial)
	require.Error(t, err)
	assert.ErrorIs(t, err, report.ErrReportMissing)

	require.Len(t, res.Branches, 3)
	assert.Equal(t, StatusOK, res.Branches[0].Status)
	assert.Equal(t, StatusOK, res.Branches[1].Status)
	assert.Equal(t, StatusFailed, res.Branches[2].Status)
	assert.Equal(t, "my2n", res.Failed().Group)

	assert.FileExists(t, f.cfg.Outputs.Product)
	assert.FileExists(t, f.cfg.Outputs.Control4)
	assert.NoFileExists(t, f.cfg.Outputs.My2N)

	require.Len(t, f.journal.records, 1)
	assert.Equal(t, "failed", f.journal.records[0].Outcome)
	assert.Equal(t, []string{"product", "control4"}, f.journal.records[0].Completed)
}

func TestRunValidationFailureStopsLaterBranches(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, "My2N Token: T\n")
	wo := workOrder("PROD-ALL")
	wo.Lines = wo.Lines[:3] // no control4 lines

	res, err := f.runner.Run(context.Background(), f.sess, wo, serial)
	require.Error(t, err)
	assert.ErrorIs(t, err, lbl.ErrMissing)

	assert.Equal(t, StatusOK, res.Branches[0].Status)
	assert.Equal(t, StatusFailed, res.Branches[1].Status)
	assert.Equal(t, StatusNotRun, res.Branches[2].Status)
	assert.NoFileExists(t, f.cfg.Outputs.My2N, "later branch must not run")

	// audit has product ok and control4 failed, nothing for my2n
	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, audit.OutcomeFailed, f.audit.entries[1].Outcome)
	assert.Contains(t, f.audit.entries[1].Reason, serial+"J=")
}

func TestRunInjectionFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	wo := workOrder("PROD-A")
	wo.Lines[1] = serial + `D="L Nazev","Jiny","P Datum"`

	_, err := f.runner.Run(context.Background(), f.sess, wo, serial)
	assert.ErrorIs(t, err, lbl.ErrInjection)
	assert.NoFileExists(t, f.cfg.Outputs.Product)
	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.Triggers, "PROD_TRIG"))
}

func TestRunInvalidSerial(t *testing.T) {
	f := newFixture(t)
	res, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-A"), "24-1-2")
	assert.ErrorIs(t, err, lbl.ErrInvalidSerial)
	assert.Empty(t, res.Branches)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.OutcomeFailed, f.audit.entries[0].Outcome)
	assert.Empty(t, f.audit.entries[0].Branch)
}

func TestRunProductNotMapped(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.Run(context.Background(), f.sess, workOrder("UNKNOWN"), serial)
	assert.ErrorIs(t, err, ErrNotMapped)
}

func TestRunEmptyLabelFile(t *testing.T) {
	f := newFixture(t)
	wo := workOrder("PROD-A")
	wo.Lines = nil
	_, err := f.runner.Run(context.Background(), f.sess, wo, serial)
	assert.ErrorIs(t, err, ErrEmptyLabelFile)
}

func TestRunUnknownGroupIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.cfg.TriggerMapping["zebra"] = config.Products{"PROD-A"}
	f.writeReport(t, "My2N Token: T\n")

	res, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-A"), serial)
	require.NoError(t, err)
	require.Len(t, res.Branches, 3)
	assert.Equal(t, StatusSkipped, res.Branches[2].Status)
}

func TestRunRequiresSessionAndOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.Run(context.Background(), nil, workOrder("PROD-A"), serial)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = f.runner.Run(context.Background(), f.sess, nil, serial)
	assert.ErrorIs(t, err, ErrNoOrder)
}

func TestRunUsesSessionPrefix(t *testing.T) {
	f := newFixture(t)
	other := session.New("line-1", credential.Identity{Prefix: "AB"})

	_, err := f.runner.Run(context.Background(), other, workOrder("PROD-C4"), serial)
	require.NoError(t, err)
	assert.Contains(t, readFile(t, f.cfg.Outputs.Product), `"IP Verso","AB","2024-05-01"`)
}

func TestRunJournalFailureDoesNotFailPrint(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("disk full")
	_, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-C4"), serial)
	assert.NoError(t, err)
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.runner.Run(ctx, f.sess, workOrder("PROD-A"), serial)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, f.cfg.Outputs.Product)
}

func TestRunWriteFailureContinuesWithLaterBranches(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, "My2N Token: T\n")
	f.cfg.Outputs.Product = filepath.Join(f.dir, "missing", "product.txt")

	res, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-ALL"), serial)
	require.Error(t, err)
	var werr *WriteError
	assert.ErrorAs(t, err, &werr)

	require.Len(t, res.Branches, 3)
	assert.Equal(t, StatusFailed, res.Branches[0].Status)
	assert.Equal(t, StatusOK, res.Branches[1].Status)
	assert.Equal(t, StatusOK, res.Branches[2].Status)
	assert.Equal(t, "product", res.Failed().Group)
	assert.Equal(t, []string{"control4", "my2n"}, res.Completed())
	assert.FileExists(t, f.cfg.Outputs.Control4)
	assert.FileExists(t, f.cfg.Outputs.My2N)

	require.Len(t, f.audit.entries, 3)
	assert.Equal(t, audit.OutcomeFailed, f.audit.entries[0].Outcome)
	assert.Equal(t, audit.OutcomeOK, f.audit.entries[2].Outcome)
}

func TestRunMissingTriggerDirFailsEveryBranch(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, "My2N Token: T\n")
	require.NoError(t, os.RemoveAll(f.cfg.Paths.Triggers))

	res, err := f.runner.Run(context.Background(), f.sess, workOrder("PROD-ALL"), serial)
	assert.ErrorIs(t, err, output.ErrTriggerDir)
	require.Len(t, res.Branches, 3)
	for _, b := range res.Branches {
		assert.Equal(t, StatusFailed, b.Status, b.Group)
	}
	// label data is written before the triggers
	assert.FileExists(t, f.cfg.Outputs.Product)
	assert.FileExists(t, f.cfg.Outputs.My2N)
}

func TestRunWritesPrefixInLabelEncoding(t *testing.T) {
	f := newFixture(t)
	enc := charmap.Windows1250.NewEncoder()
	record, err := enc.String(`"Dvořák","XX","2024-05-01"`)
	require.NoError(t, err)
	wo := workOrder("PROD-C4")
	wo.Lines[2] = serial + "E=" + record

	op := session.New("line-1", credential.Identity{Surname: "Čapek", GivenName: "Karel", Prefix: "Č1"})
	_, err = f.runner.Run(context.Background(), op, wo, serial)
	require.NoError(t, err)

	want, err := enc.String(`"L Nazev","P Znacka balice","P Datum"` + "\n" + `"Dvořák","Č1","2024-05-01"` + "\n")
	require.NoError(t, err)
	assert.Equal(t, []byte(want), []byte(readFile(t, f.cfg.Outputs.Product)))
}

func TestRunPrefixWithoutWindows1250Form(t *testing.T) {
	f := newFixture(t)
	op := session.New("line-1", credential.Identity{Prefix: "日本"})

	_, err := f.runner.Run(context.Background(), op, workOrder("PROD-A"), serial)
	assert.ErrorIs(t, err, lbl.ErrUnencodable)
	assert.NoFileExists(t, f.cfg.Outputs.Product)
}

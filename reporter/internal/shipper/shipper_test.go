package shipper

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func sloRows() []types.Row {
	return []types.Row{
		types.SLORow{Date: types.NewTimestamp(day, types.FormatAthena), Component: "API", Uptime: 50, NumOutages: 1},
		types.SLORow{Date: types.NewTimestamp(day, types.FormatAthena), Component: "Web, EU", Uptime: 100, NumOutages: 0},
	}
}

// mockUploader records uploads and fails the first failN calls.
type mockUploader struct {
	mu      sync.Mutex
	objects []Object
	failN   int
	calls   int
}

func (m *mockUploader) Upload(_ context.Context, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failN > 0 {
		m.failN--
		return errors.New("connection reset")
	}
	m.objects = append(m.objects, obj)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

// --- Encoding ---

func TestEncode_CSV(t *testing.T) {
	out, err := Encode(EncodingCSV, sloRows(), true)
	require.NoError(t, err)
	assert.Equal(t, "date,component,uptime,num_outages\n"+
		"2024-03-01 00:00:00,API,50,1\n"+
		"2024-03-01 00:00:00,\"Web, EU\",100,0\n", string(out))

	out, err = Encode(EncodingCSV, sloRows(), false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "2024-03-01"))
}

func TestEncode_JSONLines(t *testing.T) {
	out, err := Encode(EncodingJSONL, sloRows(), true)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"date":"2024-03-01 00:00:00","component":"API","uptime":50,"num_outages":1}`, lines[0])
}

func TestEncode_NullableFields(t *testing.T) {
	row := types.IncidentSummaryRow{ID: "P1", CreatedAt: types.NewTimestamp(day, types.FormatEpochMillis)}
	out, err := Encode(EncodingJSONL, []types.Row{row}, false)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"time_to_acknowledge":null`)
	assert.Contains(t, string(out), `"created_at":1709251200000`)
}

func TestEncode_Empty(t *testing.T) {
	out, err := Encode(EncodingCSV, nil, true)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseEncoding(t *testing.T) {
	e, err := ParseEncoding("csv")
	require.NoError(t, err)
	assert.Equal(t, ".csv", e.Ext())
	_, err = ParseEncoding("parquet")
	assert.Error(t, err)
}

// --- Shipper ---

func TestShipper_UploadsEveryBatch(t *testing.T) {
	up := &mockUploader{}
	s := New(up, Options{Encoding: EncodingJSONL, Prefix: "slo/"})

	st, err := s.Ship(context.Background(), []Batch{
		{Name: "2024-03-01", Rows: sloRows()},
		{Name: "2024-03-02", Rows: sloRows()[:1]},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Objects)
	assert.Equal(t, 3, st.Rows)

	require.Len(t, up.objects, 2)
	assert.Equal(t, "slo/2024-03-01.json", up.objects[0].Key)
	assert.Equal(t, "slo/2024-03-02.json", up.objects[1].Key)
	assert.Equal(t, "application/x-ndjson", up.objects[0].ContentType)
	assert.Equal(t, len(up.objects[0].Body)+len(up.objects[1].Body), st.Bytes)
}

func TestShipper_EncodeFailureShipsNothing(t *testing.T) {
	up := &mockUploader{}
	s := New(up, Options{Encoding: "xml"})

	_, err := s.Ship(context.Background(), []Batch{{Name: "a", Rows: sloRows()}})
	require.Error(t, err)
	assert.Zero(t, up.calls)
}

func TestShipper_RetriesTransientFailures(t *testing.T) {
	up := &mockUploader{failN: 2}
	s := New(up, Options{Encoding: EncodingCSV, Attempts: 3})
	s.sleep = noSleep

	st, err := s.Ship(context.Background(), []Batch{{Name: "a", Rows: sloRows()}})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Objects)
	assert.Equal(t, 3, up.calls)
}

func TestShipper_GivesUpAfterAttempts(t *testing.T) {
	up := &mockUploader{failN: 10}
	s := New(up, Options{Encoding: EncodingCSV, Attempts: 2})
	s.sleep = noSleep

	st, err := s.Ship(context.Background(), []Batch{{Name: "a"}, {Name: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.csv")
	assert.Equal(t, 2, up.calls)
	assert.Zero(t, st.Objects)
}

func TestShipper_StopsRetryingOnCancel(t *testing.T) {
	up := &mockUploader{failN: 10}
	s := New(up, Options{Encoding: EncodingCSV, Attempts: 5, RetryWait: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	s.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx(ctx, d)
	}

	_, err := s.Ship(ctx, []Batch{{Name: "a"}})
	require.Error(t, err)
	assert.Equal(t, 1, up.calls)
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := newBackoff(0)
	for i := 0; i < 20; i++ {
		d := b.next()
		// Max + 25 % jitter is the absolute ceiling.
		assert.LessOrEqual(t, d, backoffMax+backoffMax/4, "iteration %d", i)
	}
}

// --- Uploaders ---

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Uploader_PutsObject(t *testing.T) {
	p := &fakePutter{}
	u := &S3Uploader{client: p, bucket: "reports"}

	require.NoError(t, u.Upload(context.Background(), Object{Key: "slo/2024-03-01.json", Body: []byte("{}\n"), ContentType: "application/x-ndjson"}))
	assert.Equal(t, "reports", aws.ToString(p.in.Bucket))
	assert.Equal(t, "slo/2024-03-01.json", aws.ToString(p.in.Key))
	assert.Equal(t, int64(3), aws.ToInt64(p.in.ContentLength))
	assert.Equal(t, "{}\n", string(p.body))
}

func TestS3Uploader_ErrorIsTransport(t *testing.T) {
	u := &S3Uploader{client: &fakePutter{err: errors.New("AccessDenied")}, bucket: "reports"}
	err := u.Upload(context.Background(), Object{Key: "k"})
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestDirUploader_WritesNestedKeys(t *testing.T) {
	dir := t.TempDir()
	u := DirUploader{Dir: dir}

	require.NoError(t, u.Upload(context.Background(), Object{Key: "pingdom/2024-03-01.csv", Body: []byte("a,b\n")}))
	got, err := os.ReadFile(filepath.Join(dir, "pingdom", "2024-03-01.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "pingdom"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

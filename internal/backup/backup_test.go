package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/familyxp/internal/config"
	"github.com/dukerupert/familyxp/internal/database"
)

// mockS3Client implements objectStore in memory.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(input.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(m.objects[k])))})
	}
	return out, nil
}

func setupManager(t *testing.T) (*Manager, *mockS3Client, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Backup{
		Bucket:     "snapshots",
		Region:     "auto",
		Prefix:     "familyxp/",
		AccessKey:  "AKID",
		SecretKey:  "secret",
		Passphrase: "correct horse",
	}
	mgr, err := NewManager(cfg, db, slog.Default())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	mock := newMockS3()
	mgr.client = mock
	return mgr, mock, db
}

func TestNewManagerRequiresConfig(t *testing.T) {
	if _, err := NewManager(config.Backup{Bucket: "b"}, nil, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSnapshotAndRestore(t *testing.T) {
	mgr, mock, db := setupManager(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO families (name) VALUES ('Rivera')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := mgr.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !strings.HasPrefix(snap.Key, "familyxp/") || !strings.HasSuffix(snap.Key, ".db.enc") {
		t.Errorf("key = %q", snap.Key)
	}
	if bytes.HasPrefix(mock.objects[snap.Key], []byte(sqliteMagic)) {
		t.Error("uploaded snapshot is not encrypted")
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := mgr.Restore(ctx, snap.Key, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var name string
	if err := restored.QueryRow(`SELECT name FROM families`).Scan(&name); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if name != "Rivera" {
		t.Errorf("restored family = %q", name)
	}

	if err := mgr.Restore(ctx, snap.Key, dst); err == nil {
		t.Error("restore overwrote an existing file")
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	mgr, _, _ := setupManager(t)
	ctx := context.Background()

	snap, err := mgr.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	mgr.cfg.Passphrase = "battery staple"
	err = mgr.Restore(ctx, snap.Key, filepath.Join(t.TempDir(), "x.db"))
	if !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("err = %v, want ErrBadPassphrase", err)
	}
}

func TestSnapshotUploadError(t *testing.T) {
	mgr, mock, _ := setupManager(t)
	mock.putErr = errors.New("bucket offline")
	if _, err := mgr.Snapshot(context.Background()); err == nil {
		t.Error("expected upload error")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	mgr, mock, _ := setupManager(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	for i := range 4 {
		mgr.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		if _, err := mgr.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}

	deleted, err := mgr.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	snaps, err := mgr.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Key != "familyxp/20260302T050000Z.db.enc" {
		t.Errorf("remaining = %+v", snaps)
	}
	if len(mock.objects) != 2 {
		t.Errorf("objects = %d", len(mock.objects))
	}
}

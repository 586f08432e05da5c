// Package backup takes encrypted snapshots of the points database and keeps
// them in S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/familyxp/internal/config"
)

// objectStore is the subset of the S3 client used here.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var ErrNotConfigured = errors.New("backup not configured: bucket, credentials and passphrase are required")

const sqliteMagic = "SQLite format 3\x00"

type Snapshot struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

type Manager struct {
	db     *sql.DB
	client objectStore
	cfg    config.Backup
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(cfg config.Backup, db *sql.DB, logger *slog.Logger) (*Manager, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:     db,
		client: newS3Client(cfg),
		cfg:    cfg,
		logger: logger.With("component", "backup"),
		now:    time.Now,
	}, nil
}

func newS3Client(cfg config.Backup) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) prefix() string {
	return strings.TrimSuffix(m.cfg.Prefix, "/") + "/"
}

// Snapshot copies the live database with VACUUM INTO, encrypts the copy and
// uploads it. The key sorts by time.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	dir, err := os.MkdirTemp("", "familyxp-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	copyPath := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", copyPath); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	plain, err := os.ReadFile(copyPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plain, m.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := m.prefix() + m.now().UTC().Format("20060102T150405Z") + ".db.enc"
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	}); err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("snapshot uploaded", "key", key, "bytes", len(sealed))
	return &Snapshot{Key: key, Size: int64(len(sealed))}, nil
}

// List returns stored snapshots, oldest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.Bucket),
			Prefix:            aws.String(m.prefix()),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range out.Contents {
			snaps = append(snaps, Snapshot{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	slices.SortFunc(snaps, func(a, b Snapshot) int { return strings.Compare(a.Key, b.Key) })
	return snaps, nil
}

// Prune deletes all but the newest keep snapshots and returns how many went.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	snaps, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}
	if len(snaps) <= keep {
		return 0, nil
	}
	deleted := 0
	for _, s := range snaps[:len(snaps)-keep] {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(s.Key),
		}); err != nil {
			return deleted, fmt.Errorf("delete snapshot %s: %w", s.Key, err)
		}
		deleted++
	}
	m.logger.Info("old snapshots pruned", "deleted", deleted, "kept", keep)
	return deleted, nil
}

// Restore downloads key, decrypts it and writes it to dst, which must not
// already exist. The server must be stopped before dst replaces the live
// database.
func (m *Manager) Restore(ctx context.Context, key, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("restore target %s already exists", dst)
	}
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(plain, []byte(sqliteMagic)) {
		return errors.New("snapshot is not a SQLite database")
	}
	if err := os.WriteFile(dst, plain, 0o600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}
	m.logger.Info("snapshot restored", "key", key, "path", dst)
	return nil
}

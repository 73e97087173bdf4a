package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Exporter pushes a finished section's audio out to cold storage, ahead of
// retention pruning deleting it from the local database.
type Exporter interface {
	Export(bucket, key string, body io.ReadSeeker) error
}

// LocalExporter copies sections to another directory on the same host,
// useful for NFS-mounted archive volumes.
type LocalExporter struct {
	RootPath string
}

func NewLocalExporter(root string) *LocalExporter {
	_ = os.MkdirAll(root, 0755)
	return &LocalExporter{RootPath: root}
}

func (l *LocalExporter) Export(bucket, key string, body io.ReadSeeker) error {
	path := filepath.Join(l.RootPath, bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, body)
	return err
}

// S3Exporter pushes sections to any S3-compatible bucket (AWS S3 or a
// Backblaze B2 bucket addressed through its S3-compatible endpoint, which
// is why a dedicated B2 client adds nothing a custom S3 endpoint can't do).
type S3Exporter struct {
	api *s3.S3
}

func NewS3Exporter(endpoint, region, keyID, appKey string) (*S3Exporter, error) {
	cfg := aws.NewConfig().
		WithRegion(region).
		WithCredentials(credentials.NewStaticCredentials(keyID, appKey, ""))
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	return &S3Exporter{api: s3.New(sess)}, nil
}

func (s *S3Exporter) Export(bucket, key string, body io.ReadSeeker) error {
	_, err := s.api.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/octet-stream"),
	})
	return err
}

// SFTPExporter pushes sections to a remote archive host, matching the
// original recorder's SftpExportConfig block (host/port/user/key-based
// authentication, no password fallback).
type SFTPExporter struct {
	client   *sftp.Client
	remoteRoot string
}

func NewSFTPExporter(addr, user, privateKeyPEM, remoteRoot string) (*SFTPExporter, error) {
	signer, err := ssh.ParsePrivateKey([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse sftp private key: %w", err)
	}
	sshCfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("dial sftp host: %w", err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("start sftp client: %w", err)
	}
	return &SFTPExporter{client: client, remoteRoot: remoteRoot}, nil
}

func (s *SFTPExporter) Export(bucket, key string, body io.ReadSeeker) error {
	remotePath := strings.TrimSuffix(s.remoteRoot, "/") + "/" + bucket + "/" + key
	if err := s.client.MkdirAll(filepath.Dir(remotePath)); err != nil {
		return err
	}
	f, err := s.client.Create(remotePath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, body)
	return err
}

func (s *SFTPExporter) Close() error {
	return s.client.Close()
}

// SectionExportKey builds the archive key for a section's concatenated
// payload, grouped by show and day for easy browsing on the remote end.
func SectionExportKey(showName string, sec Section) string {
	day := time.UnixMilli(sec.StartTimestampMs).UTC().Format("2006-01-02")
	return fmt.Sprintf("%s/%s/section-%d.bin", showName, day, sec.ID)
}

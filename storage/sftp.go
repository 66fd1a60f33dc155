package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPOptions locate a CSV file on a remote host.
type SFTPOptions struct {
	Host           string // host:port
	User           string
	KeyPath        string // private key for public key auth
	KnownHostsPath string // empty skips host key verification
	Path           string // remote CSV file
}

// SFTP appends records to a CSV file on a remote host.
type SFTP struct {
	ssh    *ssh.Client // nil when the sftp client was injected
	client *sftp.Client
	path   string
	log    *zap.Logger
}

// DialSFTP opens an SSH connection and an SFTP session on top of it.
func DialSFTP(opts SFTPOptions, log *zap.Logger) (*SFTP, error) {
	conf, err := sshConfig(opts, log)
	if err != nil {
		return nil, err
	}
	sshClient, err := ssh.Dial("tcp", opts.Host, conf)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", opts.Host, err)
	}
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("open sftp session: %w", err)
	}
	s := NewSFTP(sftpClient, opts.Path, log)
	s.ssh = sshClient
	return s, nil
}

// NewSFTP wraps an existing SFTP session.
func NewSFTP(client *sftp.Client, remotePath string, log *zap.Logger) *SFTP {
	return &SFTP{client: client, path: remotePath, log: log}
}

func sshConfig(opts SFTPOptions, log *zap.Logger) (*ssh.ClientConfig, error) {
	keyByte, err := os.ReadFile(opts.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	key, err := ssh.ParsePrivateKey(keyByte)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(opts.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
	} else {
		log.Warn("sftp host key is not verified", zap.String("host", opts.Host))
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(key)},
		HostKeyCallback: hostKeyCallback,
	}, nil
}

// Append writes rec at the end of the remote file, with a header when the
// file is new or empty.
func (s *SFTP) Append(_ context.Context, rec Record) error {
	if dir := path.Dir(s.path); dir != "." && dir != "/" {
		if err := s.client.MkdirAll(dir); err != nil {
			return fmt.Errorf("create remote dir %s: %w", dir, err)
		}
	}
	f, err := s.client.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY)
	if err != nil {
		return fmt.Errorf("open remote csv %s: %w", s.path, err)
	}
	defer f.Close()

	// Not every server honours the append flag, so write at the end
	// explicitly.
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek remote csv %s: %w", s.path, err)
	}
	if err := writeRow(f, rec, size == 0); err != nil {
		return fmt.Errorf("write remote csv %s: %w", s.path, err)
	}
	s.log.Debug("record appended over sftp", zap.String("path", s.path), zap.String("day", rec.Day()))
	return nil
}

func (s *SFTP) Close() error {
	err := s.client.Close()
	if s.ssh != nil {
		if cerr := s.ssh.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

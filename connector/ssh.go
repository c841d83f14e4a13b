package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mensylisir/xmdriver/common"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/file"
	"github.com/mensylisir/xmdriver/logger"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultAgentSocket = socketEnvPrefix + "SSH_AUTH_SOCK"

	homeCommand = `printf '%s' "$HOME"`
)

type Config struct {
	Username string
	Address  string
	Port     int

	// Key material. Everything available is offered to the server.
	PrivateKey  string
	KeyFiles    []string
	AgentSocket string
	// ScanKeyDir is searched for unencrypted private keys, usually ~/.ssh.
	ScanKeyDir string
	// Password is only offered after every key. It is never prompted for.
	Password string

	// KnownHostsFile enables host key verification. When empty any host key
	// is accepted.
	KnownHostsFile string
	Timeout        time.Duration
}

var _ Connection = (*connection)(nil)

type connection struct {
	mu         sync.Mutex
	sftpclient *sftp.Client
	sshclient  *ssh.Client
	config     Config

	agentSocketConn net.Conn
}

// NewConnection authenticates to cfg.Address with every piece of local key
// material it can find. Any failure to reach or log in to the host is an
// *errs.AuthError.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	cfg, err := validateConfig(cfg)
	if err != nil {
		return nil, err
	}

	endpoint := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	conn := &connection{config: cfg}

	authMethods, err := conn.authMethods()
	if err != nil {
		conn.cleanupAgentSocket()
		return nil, errs.NewAuth(endpoint, cfg.Username, err)
	}

	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		conn.cleanupAgentSocket()
		return nil, err
	}

	sshClientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Timeout:         cfg.Timeout,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		conn.cleanupAgentSocket()
		return nil, errs.NewAuth(endpoint, cfg.Username, errors.Wrapf(err, "could not establish connection to %s", endpoint))
	}

	_ = netConn.SetDeadline(time.Now().Add(cfg.Timeout))
	ncc, chans, reqs, err := ssh.NewClientConn(netConn, endpoint, sshClientConfig)
	if err != nil {
		_ = netConn.Close()
		conn.cleanupAgentSocket()
		return nil, errs.NewAuth(endpoint, cfg.Username, errors.Wrap(err, "ssh handshake failed"))
	}
	_ = netConn.SetDeadline(time.Time{})

	conn.sshclient = ssh.NewClient(ncc, chans, reqs)
	logger.Log.DebugfNode(cfg.Address, "Connected to %s as %s", endpoint, cfg.Username)
	return conn, nil
}

func validateConfig(cfg Config) (Config, error) {
	if len(cfg.Username) == 0 {
		return cfg, errs.NewConfiguration("username", "no username specified for SSH connection")
	}
	if len(cfg.Address) == 0 {
		return cfg, errs.NewConfiguration("hostname", "no address specified for SSH connection")
	}
	if cfg.Port <= 0 {
		cfg.Port = common.DefaultSSHPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg, nil
}

// authMethods collects the signers into a single publickey method. The
// client tries each method type once, so the keys must not be split.
func (c *connection) authMethods() ([]ssh.AuthMethod, error) {
	cfg := c.config
	var signers []ssh.Signer

	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, errors.Wrap(err, "the given SSH key could not be parsed")
		}
		signers = append(signers, signer)
	}

	for _, keyFile := range cfg.KeyFiles {
		signer, err := parseKeyFile(keyFile)
		if err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}

	if len(cfg.AgentSocket) > 0 {
		if socket := resolveAgentSocket(cfg.AgentSocket); socket == "" {
			logger.Log.Debugf("SSH agent socket %s is not set, skipping agent", cfg.AgentSocket)
		} else if agentKeys, agentConn, err := agentSigners(socket); err != nil {
			logger.Log.Warnf("Ignoring SSH agent: %v", err)
		} else {
			c.agentSocketConn = agentConn
			signers = append(signers, agentKeys...)
		}
	}

	if len(cfg.ScanKeyDir) > 0 {
		signers = append(signers, scanKeyDir(cfg.ScanKeyDir)...)
	}

	methods := make([]ssh.AuthMethod, 0, 2)
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if len(cfg.Password) > 0 {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("no usable key material found in the agent, the configured identities or the key directory")
	}
	return methods, nil
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsFile == "" {
		logger.Log.WarnfNode(cfg.Address, "No known_hosts file configured, the host key of %s is not verified", cfg.Address)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(cfg.KnownHostsFile)
	if err != nil {
		return nil, errs.NewConfiguration("known-hosts", "cannot load %s: %v", cfg.KnownHostsFile, err)
	}
	return callback, nil
}

func (c *connection) cleanupAgentSocket() {
	if c.agentSocketConn != nil {
		_ = c.agentSocketConn.Close()
		c.agentSocketConn = nil
	}
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var combinedErrors []string
	if c.sftpclient != nil {
		if err := c.sftpclient.Close(); err != nil {
			combinedErrors = append(combinedErrors, fmt.Sprintf("sftp close error: %v", err))
		}
		c.sftpclient = nil
	}
	if c.sshclient != nil {
		if err := c.sshclient.Close(); err != nil {
			combinedErrors = append(combinedErrors, fmt.Sprintf("ssh close error: %v", err))
		}
		c.sshclient = nil
	}
	if c.agentSocketConn != nil {
		if err := c.agentSocketConn.Close(); err != nil {
			combinedErrors = append(combinedErrors, fmt.Sprintf("agent socket close error: %v", err))
		}
		c.agentSocketConn = nil
	}

	if len(combinedErrors) > 0 {
		return errors.New(strings.Join(combinedErrors, "; "))
	}
	return nil
}

func (c *connection) newSession(ctx context.Context) (*ssh.Session, error) {
	c.mu.Lock()
	client := c.sshclient
	c.mu.Unlock()

	if client == nil {
		return nil, errors.New("ssh connection is closed or not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to create ssh session")
	}

	type result struct {
		sess *ssh.Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := client.NewSession()
		done <- result{sess: s, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.sess != nil {
				_ = r.sess.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "failed to create ssh session (context cancelled)")
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "failed to create ssh session")
		}
		return r.sess, nil
	}
}

// Exec runs cmd without a terminal so stdout and stderr stay apart.
func (c *connection) Exec(ctx context.Context, cmd string) (stdout []byte, stderr []byte, exitCode int, err error) {
	sess, err := c.newSession(ctx)
	if err != nil {
		return nil, nil, -1, err
	}
	defer sess.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	sess.Stdout = &stdoutBuf
	sess.Stderr = &stderrBuf

	if err := sess.Start(strings.TrimSpace(cmd)); err != nil {
		return nil, nil, -1, errors.Wrapf(err, "failed to start command: %s", cmd)
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- sess.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGINT)
		_ = sess.Close()
		select {
		case <-waitDone:
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, errors.Wrap(ctx.Err(), "command execution cancelled")
		case <-time.After(250 * time.Millisecond):
			return nil, nil, -1, errors.Wrap(ctx.Err(), "command execution cancelled")
		}

	case waitErr := <-waitDone:
		if waitErr == nil {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(waitErr, &exitErr) {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, errors.Wrapf(waitErr, "command %q did not complete", cmd)
	}
}

// HomeDir asks the remote shell for $HOME.
func (c *connection) HomeDir(ctx context.Context) (string, error) {
	stdout, stderr, exitCode, err := c.Exec(ctx, homeCommand)
	if err != nil || exitCode != 0 {
		return "", errs.NewExecution(homeCommand, exitCode, string(stdout), string(stderr), err)
	}
	home := strings.TrimSpace(string(stdout))
	if home == "" {
		return "", errs.NewExecution(homeCommand, exitCode, "", string(stderr), errors.New("remote $HOME is empty"))
	}
	return home, nil
}

// sftpClient opens the file channel on first use. Plain command execution
// works on hosts without an sftp subsystem.
func (c *connection) sftpClient() (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshclient == nil {
		return nil, errors.New("ssh connection is closed or not initialized")
	}
	if c.sftpclient == nil {
		client, err := sftp.NewClient(c.sshclient)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create SFTP client")
		}
		c.sftpclient = client
	}
	return c.sftpclient, nil
}

// Glob lists remote paths matching pattern in lexical order.
func (c *connection) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := c.sftpClient()
	if err != nil {
		return nil, err
	}
	matches, err := client.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "sftp: failed to glob %s", pattern)
	}
	return matches, nil
}

func (c *connection) Fetch(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := c.sftpClient()
	if err != nil {
		return nil, err
	}
	f, err := client.Open(remotePath)
	if err != nil {
		return nil, errors.Wrapf(err, "sftp: failed to open remote file %s for fetching", remotePath)
	}
	return f, nil
}

func (c *connection) DownloadFile(ctx context.Context, remotePath string, localPath string) error {
	src, err := c.Fetch(ctx, remotePath)
	if err != nil {
		return err
	}
	defer src.Close()

	n, err := file.WriteFrom(localPath, src)
	if err != nil {
		return errors.Wrapf(err, "failed to download %s", remotePath)
	}
	logger.Log.DebugfNode(c.config.Address, "Downloaded %s to %s (%d bytes)", remotePath, localPath, n)
	return nil
}

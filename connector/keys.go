package connector

import (
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/util"
)

const socketEnvPrefix = "env:"

// skipKeyFiles are never private keys, so the ~/.ssh scan does not try them.
var skipKeyFiles = map[string]bool{
	"known_hosts":     true,
	"known_hosts.old": true,
	"authorized_keys": true,
	"config":          true,
	"environment":     true,
}

// resolveAgentSocket expands an "env:NAME" socket spec. It returns "" when
// the variable is unset.
func resolveAgentSocket(spec string) string {
	if !strings.HasPrefix(spec, socketEnvPrefix) {
		return spec
	}
	return os.Getenv(strings.TrimPrefix(spec, socketEnvPrefix))
}

// agentSigners returns the identities held by the agent at socket together
// with the open socket, which the caller closes after the handshake.
func agentSigners(socket string) ([]ssh.Signer, net.Conn, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open SSH agent socket %q", socket)
	}
	signers, err := agent.NewClient(conn).Signers()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "error when creating signer for SSH agent")
	}
	return signers, conn, nil
}

// parseKeyFile reads one private key. Configured key files must parse, so the
// error is returned as is.
func parseKeyFile(path string) (ssh.Signer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keyfile %q", path)
	}
	signer, err := ssh.ParsePrivateKey(content)
	if err != nil {
		return nil, errors.Wrapf(err, "the SSH key in %q could not be parsed", path)
	}
	return signer, nil
}

// DefaultKeyDir is ~/.ssh of the local user.
func DefaultKeyDir() (string, error) {
	home, err := util.Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ssh"), nil
}

// scanKeyDir returns a signer for every unencrypted private key in dir.
// Public keys, passphrase protected keys and anything unparsable are
// skipped.
func scanKeyDir(dir string) []ssh.Signer {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Log.Debugf("Not scanning %s for keys: %v", dir, err)
		return nil
	}

	var signers []ssh.Signer
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".pub") || skipKeyFiles[name] {
			continue
		}
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Log.Debugf("Skipping %s: %v", path, err)
			continue
		}
		signer, err := ssh.ParsePrivateKey(content)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) {
				logger.Log.Debugf("Skipping passphrase protected key %s", path)
			}
			continue
		}
		logger.Log.Debugf("Using key %s (%s)", path, signer.PublicKey().Type())
		signers = append(signers, signer)
	}
	return signers
}

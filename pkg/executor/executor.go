// Package executor runs shell commands against hosts, either over SSH or
// in the controller's own environment, behind a single contract.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/recira/controller/pkg/util"
)

// Kind selects how a Target is reached.
type Kind int

const (
	// Local runs commands in the controller's own environment.
	Local Kind = iota
	// Remote runs commands over SSH against Target.Address.
	Remote
)

// Credentials authenticates an SSH session. KeyPath is optional; when set
// it takes precedence over Secret (password auth).
type Credentials struct {
	User    string
	Secret  string
	KeyPath string
}

// Target names a host to run a command against.
type Target struct {
	Address     string // host[:port], port defaults to 22 for Remote
	Kind        Kind
	Credentials Credentials
}

// Result is the outcome of a single command execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs commands against a Target with no connection pooling: every
// call opens (and tears down) its own session.
type Executor struct {
	// DialTimeout bounds the SSH handshake. Defaults to 10s when zero.
	DialTimeout time.Duration
}

// New returns an Executor with default timeouts.
func New() *Executor {
	return &Executor{DialTimeout: 10 * time.Second}
}

// Execute runs command against target, bounded by ctx and timeout. On
// timeout it returns (-1, "", "timed out after Ns") rather than an error,
// matching the contract every caller relies on.
func (e *Executor) Execute(ctx context.Context, target Target, command string, timeout time.Duration) (Result, error) {
	return e.ExecuteWithStdin(ctx, target, command, "", timeout)
}

// ExecuteWithStdin runs command against target with stdin piped to it.
// Callers writing file content (dnsmasq configs and the like) use this
// instead of interpolating the content into the command line, so there is
// no shell-escaping step to get subtly wrong.
func (e *Executor) ExecuteWithStdin(ctx context.Context, target Target, command, stdin string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		var res Result
		var err error
		if target.Kind == Local {
			res, err = e.executeLocal(ctx, command, stdin)
		} else {
			res, err = e.executeRemote(ctx, target, command, stdin)
		}
		ch <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return Result{ExitCode: -1, Stdout: "", Stderr: fmt.Sprintf("timed out after %.0fs", timeout.Seconds())}, nil
	case o := <-ch:
		return o.res, o.err
	}
}

func (e *Executor) executeLocal(ctx context.Context, command, stdin string) (Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = bytes.NewBufferString(stdin)
	}

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, err
		}
	}

	return Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (e *Executor) executeRemote(ctx context.Context, target Target, command, stdin string) (Result, error) {
	addr := target.Address
	if addr == "" {
		return Result{}, fmt.Errorf("remote target has no address")
	}
	if !hasPort(addr) {
		addr = addr + ":22"
	}

	auth, err := authMethods(target.Credentials)
	if err != nil {
		return Result{}, err
	}

	config := &ssh.ClientConfig{
		User:            target.Credentials.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         e.dialTimeout(),
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		auth := isAuthFailure(err)
		return Result{}, util.NewUnreachableError(target.Address, err.Error(), auth)
	}

	// Unblock session I/O if the context is cancelled mid-command.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-done:
		}
	}()
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("opening SSH session to %s: %w", target.Address, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != "" {
		session.Stdin = bytes.NewBufferString(stdin)
	}

	exitCode := 0
	if err := session.Run(command); err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return Result{}, fmt.Errorf("running command on %s: %w", target.Address, err)
		}
	}

	return Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (e *Executor) dialTimeout() time.Duration {
	if e.DialTimeout > 0 {
		return e.DialTimeout
	}
	return 10 * time.Second
}

func authMethods(creds Credentials) ([]ssh.AuthMethod, error) {
	if creds.KeyPath != "" {
		signer, err := loadPrivateKey(creds.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading private key %s: %w", creds.KeyPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(creds.Secret)}, nil
}

func hasPort(addr string) bool {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ']' {
			return false // IPv6 without port
		}
		if addr[i] == ':' {
			return true
		}
	}
	return false
}

func isAuthFailure(err error) bool {
	_, ok := err.(*ssh.ExitMissingError)
	if ok {
		return false
	}
	return containsAuthFailure(err.Error())
}

func containsAuthFailure(msg string) bool {
	const needle = "unable to authenticate"
	if len(msg) < len(needle) {
		return false
	}
	for i := 0; i+len(needle) <= len(msg); i++ {
		if msg[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

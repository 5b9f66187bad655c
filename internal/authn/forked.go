package authn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrNotRunning is returned when the worker process has not been started.
var ErrNotRunning = errors.New("authenticator process not running")

// Forked runs authd as a child process of exe ("<exe> authd --socket S --users F")
// and forwards Authenticate calls to it. The child exits when its stdin closes,
// so it does not outlive the parent.
type Forked struct {
	exe       string
	usersFile string
	log       *zap.Logger

	mu     sync.Mutex
	dir    string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	exited chan struct{}
	conn   *grpc.ClientConn
	client *Client
}

// NewForked constructs a stopped Forked authenticator.
func NewForked(exe, usersFile string, log *zap.Logger) *Forked {
	return &Forked{exe: exe, usersFile: usersFile, log: log}
}

// Start launches the worker and waits for its socket to appear.
func (f *Forked) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd != nil {
		return nil
	}

	dir, err := os.MkdirTemp("", "phishtrack-authd-")
	if err != nil {
		return err
	}
	sock := filepath.Join(dir, "authd.sock")

	cmd := exec.Command(f.exe, "authd", "--socket", sock, "--users", f.usersFile)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("start authd: %w", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	if err := waitForSocket(ctx, sock, exited); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		<-exited
		_ = os.RemoveAll(dir)
		return err
	}

	conn, err := grpc.NewClient("unix://"+sock, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		<-exited
		_ = os.RemoveAll(dir)
		return err
	}

	f.dir, f.cmd, f.stdin, f.exited, f.conn = dir, cmd, stdin, exited, conn
	f.client = NewClient(conn)
	f.log.Info("forked an authenticating process", zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Authenticate forwards to the worker.
func (f *Forked) Authenticate(ctx context.Context, username, password string) (bool, error) {
	f.mu.Lock()
	c := f.client
	f.mu.Unlock()
	if c == nil {
		return false, ErrNotRunning
	}
	return c.Authenticate(ctx, username, password)
}

// Stop closes the connection, asks the worker to exit and kills it after timeout.
func (f *Forked) Stop(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd == nil {
		return nil
	}
	_ = f.conn.Close()
	_ = f.stdin.Close()

	var err error
	select {
	case <-f.exited:
	case <-time.After(timeout):
		err = f.cmd.Process.Kill()
		<-f.exited
	}
	_ = os.RemoveAll(f.dir)
	f.log.Debug("stopped the forked authenticator process", zap.Int("pid", f.cmd.Process.Pid))
	f.cmd, f.client, f.conn = nil, nil, nil
	return err
}

func waitForSocket(ctx context.Context, sock string, exited <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(sock); err == nil {
			return nil
		}
		select {
		case <-exited:
			return errors.New("authd exited before listening")
		case <-ctx.Done():
			return fmt.Errorf("waiting for authd socket: %w", ctx.Err())
		case <-tick.C:
		}
	}
}

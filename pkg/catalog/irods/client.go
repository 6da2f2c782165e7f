// Package irods implements the catalog contract on top of an iRODS zone,
// driving the installed icommands. Every operation maps onto one command
// invocation whose output is parsed into typed results.
package irods

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mirrorlake/catapult/pkg/catalog"
)

// runner abstracts command execution for tests.
type runner func(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)

// Config carries the host-side knobs of the icommands.
type Config struct {
	// BinDir optionally prefixes every command, for hosts where the
	// icommands are not on PATH.
	BinDir string

	// StateDir holds the restart files that make interrupted puts
	// resumable. Empty disables resume support.
	StateDir string
}

// Client drives one iRODS zone. The zone, user and authentication come
// from the standard irods_environment.json of the invoking user.
type Client struct {
	binDir   string
	stateDir string
	run      runner
}

func New(cfg Config) *Client {
	return &Client{
		binDir:   cfg.BinDir,
		stateDir: cfg.StateDir,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, string, int, error) {
	slog.Debug("exec", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// A non-zero exit is a command result, not a spawn failure.
			return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
		}
		return "", "", 0, fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.String(), stderr.String(), 0, nil
}

func (c *Client) command(name string) string {
	if c.binDir == "" {
		return name
	}
	return filepath.Join(c.binDir, name)
}

func (c *Client) CreateCollection(ctx context.Context, path string, recursive bool) error {
	args := make([]string, 0, 2)
	if recursive {
		args = append(args, "-p")
	}
	args = append(args, path)

	stdout, stderr, code, err := c.run(ctx, c.command("imkdir"), args...)
	if err != nil {
		return fmt.Errorf("imkdir: %w", err)
	}
	if code == 0 {
		return nil
	}
	if isAlreadyExists(stdout, stderr) {
		return catalog.ErrCollectionExists
	}
	return fmt.Errorf("imkdir %s: exit %d: %s", path, code, diagnostic(stdout, stderr))
}

func (c *Client) ListCollections(ctx context.Context, prefix string) (mapset.Set[string], error) {
	query := fmt.Sprintf("SELECT COLL_NAME WHERE COLL_NAME LIKE '%s/%%'", escapeQuery(prefix))

	stdout, stderr, code, err := c.run(ctx, c.command("iquest"), "--no-page", query)
	if err != nil {
		return nil, fmt.Errorf("iquest: %w", err)
	}
	if isNoRows(stdout, stderr) {
		return mapset.NewThreadUnsafeSet[string](), nil
	}
	if code != 0 {
		return nil, fmt.Errorf("iquest collections under %s: exit %d: %s", prefix, code, diagnostic(stdout, stderr))
	}
	return parseCollections(stdout, prefix), nil
}

func (c *Client) StatObject(ctx context.Context, collection, name string) ([]catalog.Replica, error) {
	query := fmt.Sprintf(
		"SELECT DATA_CHECKSUM, DATA_SIZE WHERE COLL_NAME = '%s' AND DATA_NAME = '%s'",
		escapeQuery(collection), escapeQuery(name),
	)

	stdout, stderr, code, err := c.run(ctx, c.command("iquest"), "--no-page", query)
	if err != nil {
		return nil, fmt.Errorf("iquest: %w", err)
	}
	if isNoRows(stdout, stderr) {
		return nil, nil
	}
	if code != 0 {
		return nil, fmt.Errorf("iquest %s/%s: exit %d: %s", collection, name, code, diagnostic(stdout, stderr))
	}
	return parseReplicas(stdout)
}

func (c *Client) RemoveObject(ctx context.Context, path string) error {
	stdout, stderr, code, err := c.run(ctx, c.command("irm"), "-f", path)
	if err != nil {
		return fmt.Errorf("irm: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("irm %s: exit %d: %s", path, code, diagnostic(stdout, stderr))
	}
	return nil
}

func (c *Client) PutObject(ctx context.Context, req *catalog.PutRequest) error {
	args := make([]string, 0, 10)
	if req.Overwrite {
		args = append(args, "-f")
	}
	// -K has the server checksum and register what it stored, which the
	// post-transfer verification reads back.
	args = append(args, "-K")
	if c.stateDir != "" && req.ResumeID != "" {
		restart := filepath.Join(c.stateDir, req.ResumeID+".restart")
		lfRestart := filepath.Join(c.stateDir, req.ResumeID+".lf-restart")
		args = append(args, "--retries", "2", "-X", restart, "--lfrestart", lfRestart)
	}
	args = append(args, req.LocalPath, req.Path)

	stdout, stderr, code, err := c.run(ctx, c.command("iput"), args...)
	if err != nil {
		return fmt.Errorf("iput: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("iput %s: exit %d: %s", req.Path, code, diagnostic(stdout, stderr))
	}
	return nil
}

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// PipeWire lists and validates PipeWire nodes and ports
type PipeWire struct {
	// run executes a command and returns stdout; replaced in tests
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// ListPorts returns all available output (capture side) ports
func (pw *PipeWire) ListPorts(ctx context.Context) ([]string, error) {
	output, err := pw.run(ctx, "pw-link", "-o")
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}

	return parsePortList(string(output)), nil
}

// ListSources returns the distinct node names owning capture ports
func (pw *PipeWire) ListSources(ctx context.Context) ([]string, error) {
	ports, err := pw.ListPorts(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var sources []string
	for _, port := range ports {
		node := port
		if i := strings.LastIndex(port, ":"); i > 0 {
			node = port[:i]
		}
		if !seen[node] {
			seen[node] = true
			sources = append(sources, node)
		}
	}

	return sources, nil
}

// ValidatePort checks that a node or port exists in the current graph
func (pw *PipeWire) ValidatePort(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}

	ports, err := pw.ListPorts(ctx)
	if err != nil {
		slog.Debug("Failed to check source existence", "source", name, "error", err)
		return err
	}

	if !containsPort(name, ports) {
		return fmt.Errorf("source not found: %s", name)
	}

	return nil
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Input ports:") && !strings.HasPrefix(line, "Output ports:") {
			ports = append(ports, line)
		}
	}
	return ports
}

// containsPort matches either an exact port or a node name prefix ("node:port")
func containsPort(name string, ports []string) bool {
	for _, port := range ports {
		if port == name || strings.HasPrefix(port, name+":") {
			return true
		}
	}
	return false
}

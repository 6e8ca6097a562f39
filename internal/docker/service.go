package docker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dockhand/internal/errors"
	"dockhand/internal/logger"
	"dockhand/internal/transport"
)

// Executor runs a command on the remote host. Satisfied by
// transport.Manager; swapped for a stub in tests.
type Executor interface {
	Execute(cmd string, timeout time.Duration) (transport.CommandResult, error)
}

const (
	listTimeout    = 20 * time.Second
	inspectTimeout = 15 * time.Second
	statsTimeout   = 15 * time.Second
	logsTimeout    = 20 * time.Second
	actionTimeout  = 60 * time.Second

	// detailLogLines is the short log tail attached to detailed records.
	detailLogLines = 10
)

// Service issues docker CLI commands over a single executor and turns
// their output into typed records.
type Service struct {
	exec Executor
	log  logger.Logger
}

// NewService creates a docker service over the given executor.
func NewService(exec Executor, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{exec: exec, log: log}
}

// List enumerates containers. With includeStopped false, only running
// containers are returned. Quick mode stops at the cheap ps summary;
// otherwise each container is individually inspected and, when running,
// gets a stats sample and a short log tail.
// skipped counts enumeration lines dropped as malformed.
func (s *Service) List(includeStopped, quick bool) (containers []Container, skipped int, err error) {
	cmd := "docker ps --format json"
	if includeStopped {
		cmd = "docker ps -a --format json"
	}

	result, err := s.exec.Execute(cmd, listTimeout)
	if err != nil {
		return nil, 0, err
	}
	if result.ExitCode != 0 {
		return nil, 0, errors.New(errors.ErrCommand,
			fmt.Sprintf("Couldn't list containers: %s", strings.TrimSpace(result.Stderr)), "")
	}

	summaries, skipped := ParseListOutput(result.Stdout)
	if skipped > 0 {
		s.log.Warn("skipped %d malformed enumeration lines", skipped)
	}
	if quick {
		return summaries, skipped, nil
	}

	containers = []Container{}
	for _, summary := range summaries {
		detailed, err := s.Details(summary.Name)
		if err != nil {
			// One broken container shouldn't sink the whole listing
			s.log.Warn("couldn't inspect %s, keeping summary record: %v", summary.Name, err)
			containers = append(containers, summary)
			continue
		}
		containers = append(containers, *detailed)
	}
	return containers, skipped, nil
}

// Details inspects one container and returns a full record, including a
// stats sample and log tail when it is running. A nonzero inspect exit
// (typically "no such container") yields a ErrCommand error.
func (s *Service) Details(name string) (*Container, error) {
	result, err := s.exec.Execute("docker inspect "+name, inspectTimeout)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, errors.New(errors.ErrCommand,
			fmt.Sprintf("Couldn't inspect '%s': %s", name, strings.TrimSpace(result.Stderr)),
			"Check the container name: docker ps -a")
	}

	container, err := ParseInspectOutput(result.Stdout)
	if err != nil {
		return nil, err
	}

	if container.Running {
		if stats, err := s.Stats(name); err == nil {
			container.Stats = stats
		} else {
			s.log.Warn("no stats for %s: %v", name, err)
		}
	}

	if tail, err := s.Logs(name, detailLogLines, ""); err == nil && tail != "" {
		container.LogTail = strings.Split(strings.TrimSpace(tail), "\n")
	}

	return container, nil
}

// Stats samples resource usage for one container.
func (s *Service) Stats(name string) (*ResourceStats, error) {
	result, err := s.exec.Execute("docker stats --no-stream --format json "+name, statsTimeout)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, errors.New(errors.ErrCommand,
			fmt.Sprintf("Couldn't sample stats for '%s': %s", name, strings.TrimSpace(result.Stderr)), "")
	}
	return ParseStatsOutput(result.Stdout)
}

// Logs fetches up to lines of recent log output. since is an optional
// docker duration or timestamp filter ("1h", "2024-05-01T00:00:00").
func (s *Service) Logs(name string, lines int, since string) (string, error) {
	cmd := fmt.Sprintf("docker logs --tail %d --timestamps", lines)
	if since != "" {
		cmd += " --since " + since
	}
	cmd += " " + name

	result, err := s.exec.Execute(cmd, logsTimeout)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", errors.New(errors.ErrCommand,
			fmt.Sprintf("Couldn't read logs for '%s': %s", name, strings.TrimSpace(result.Stderr)), "")
	}
	// docker logs writes to both streams depending on how the container logs
	if result.Stdout == "" {
		return result.Stderr, nil
	}
	return result.Stdout, nil
}

// Start starts a stopped container.
func (s *Service) Start(name string) error {
	return s.lifecycle("docker start "+name, name, "start")
}

// Stop stops a container, giving it gracePeriod seconds before the kill.
func (s *Service) Stop(name string, gracePeriod int) error {
	return s.lifecycle(fmt.Sprintf("docker stop --time %d %s", gracePeriod, name), name, "stop")
}

// Restart restarts a container with the given grace period.
func (s *Service) Restart(name string, gracePeriod int) error {
	return s.lifecycle(fmt.Sprintf("docker restart --time %d %s", gracePeriod, name), name, "restart")
}

func (s *Service) lifecycle(cmd, name, verb string) error {
	result, err := s.exec.Execute(cmd, actionTimeout)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return errors.New(errors.ErrCommand,
			fmt.Sprintf("Couldn't %s '%s': %s", verb, name, strings.TrimSpace(result.Stderr)),
			"Check the container name: docker ps -a")
	}
	s.log.Info("%s: %s ok", name, verb)
	return nil
}

// BulkItem is the outcome for one name in a bulk action.
type BulkItem struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Bulk overall outcomes.
const (
	BulkAllSucceeded = "all_succeeded"
	BulkPartial      = "partial"
	BulkAllFailed    = "all_failed"
)

// BulkResult collects per-item outcomes of a bulk action.
type BulkResult struct {
	Overall string     `json:"overall"`
	Items   []BulkItem `json:"items"`
}

// Bulk applies one lifecycle action to each named container in order.
// One item's failure never aborts the batch; every name gets a result.
// An unknown action fails the call outright before any item runs.
func (s *Service) Bulk(action string, names []string, gracePeriod int) (BulkResult, error) {
	var apply func(name string) error
	switch action {
	case "start":
		apply = s.Start
	case "stop":
		apply = func(name string) error { return s.Stop(name, gracePeriod) }
	case "restart":
		apply = func(name string) error { return s.Restart(name, gracePeriod) }
	default:
		return BulkResult{}, errors.New(errors.ErrCommand,
			fmt.Sprintf("Unknown bulk action '%s'", action),
			"Valid actions are start, stop, and restart.")
	}

	items := make([]BulkItem, 0, len(names))
	succeeded := 0
	for _, name := range names {
		item := BulkItem{Name: name}
		if err := apply(name); err != nil {
			item.Error = err.Error()
		} else {
			item.Success = true
			succeeded++
		}
		items = append(items, item)
	}

	overall := BulkPartial
	switch succeeded {
	case len(names):
		overall = BulkAllSucceeded
	case 0:
		overall = BulkAllFailed
	}
	return BulkResult{Overall: overall, Items: items}, nil
}

// Prune removes stopped containers and returns the CLI output
// (reclaimed space summary).
func (s *Service) Prune() (string, error) {
	result, err := s.exec.Execute("docker container prune -f", actionTimeout)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", errors.New(errors.ErrCommand,
			fmt.Sprintf("Prune failed: %s", strings.TrimSpace(result.Stderr)), "")
	}
	s.log.Info("container prune completed")
	return result.Stdout, nil
}

// EngineInfo returns the remote Docker engine's system info as raw JSON.
func (s *Service) EngineInfo() (json.RawMessage, error) {
	result, err := s.exec.Execute("docker system info --format json", inspectTimeout)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, errors.New(errors.ErrCommand,
			fmt.Sprintf("Couldn't read engine info: %s", strings.TrimSpace(result.Stderr)), "")
	}
	if !json.Valid([]byte(result.Stdout)) {
		return nil, errors.New(errors.ErrParse, "Engine info wasn't valid JSON", "")
	}
	return json.RawMessage(result.Stdout), nil
}

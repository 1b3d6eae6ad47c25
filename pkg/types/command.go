package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAction marks a command whose action is not one of the four
	// orchestration verbs. Such messages are poison: logged, counted, acked.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingAgentName marks a command without an agent_name field
	ErrMissingAgentName = errors.New("missing agent_name")
)

// CommandHeader carries the fields shared by every orchestration command
type CommandHeader struct {
	AgentName  string
	AgentID    string
	AgentPath  string
	OwnerID    string
	UploadID   string
	UploadType UploadType
	BaseURL    string
}

// Header returns the shared command header
func (h *CommandHeader) Header() *CommandHeader { return h }

// Command is the parsed form of one stream message: exactly one of the four
// action variants, each embedding the shared header.
type Command interface {
	Action() Action
	Header() *CommandHeader
}

// DeployCommand requests a first-time build and deploy of an agent
type DeployCommand struct {
	CommandHeader
	GitURL     string
	WebhookURL string
}

// Action identifies the command variant
func (c *DeployCommand) Action() Action { return ActionDeployAgent }

// UpdateCommand requests a versioned update of an already deployed agent
type UpdateCommand struct {
	CommandHeader
	NewVersion      string
	PreviousVersion string
	Strategy        UpdateStrategy
	CleanupOld      bool
	GitURL          string
	WebhookURL      string
}

// Action identifies the command variant
func (c *UpdateCommand) Action() Action { return ActionUpdateAgent }

// RollbackCommand requests redeploying a previously built version without a
// rebuild. CurrentVersion is the version being rolled away from.
type RollbackCommand struct {
	CommandHeader
	TargetVersion  string
	CurrentVersion string
}

// Action identifies the command variant
func (c *RollbackCommand) Action() Action { return ActionRollbackAgent }

// RebuildCommand requests rebuilding the agent's current files in place
type RebuildCommand struct {
	CommandHeader
	Version string
}

// Action identifies the command variant
func (c *RebuildCommand) Action() Action { return ActionRebuildAgent }

// ParseCommand converts raw stream message fields into a typed command.
// Older producers published the action under "command"; both keys are
// accepted. Unknown actions and a missing agent_name are the only parse
// errors; missing optional fields are resolved by the dispatcher.
func ParseCommand(fields map[string]string) (Command, error) {
	action := strings.TrimSpace(fields["action"])
	if action == "" {
		action = strings.TrimSpace(fields["command"])
	}

	header := CommandHeader{
		AgentName:  strings.TrimSpace(fields["agent_name"]),
		AgentID:    strings.TrimSpace(fields["agent_id"]),
		AgentPath:  strings.TrimSpace(fields["agent_path"]),
		OwnerID:    strings.TrimSpace(fields["owner_id"]),
		UploadID:   strings.TrimSpace(fields["upload_id"]),
		UploadType: UploadType(strings.TrimSpace(fields["upload_type"])),
		BaseURL:    strings.TrimSpace(fields["base_url"]),
	}
	if header.AgentName == "" {
		return nil, ErrMissingAgentName
	}
	if header.AgentID == "" {
		header.AgentID = header.AgentName
	}

	switch Action(action) {
	case ActionDeployAgent:
		return &DeployCommand{
			CommandHeader: header,
			GitURL:        fields["git_url"],
			WebhookURL:    fields["webhook_url"],
		}, nil

	case ActionUpdateAgent:
		return &UpdateCommand{
			CommandHeader:   header,
			NewVersion:      strings.TrimSpace(fields["new_version"]),
			PreviousVersion: strings.TrimSpace(fields["previous_version"]),
			Strategy:        parseStrategy(fields["update_strategy"]),
			CleanupOld:      parseBool(fields["cleanup_old"]),
			GitURL:          fields["git_url"],
			WebhookURL:      fields["webhook_url"],
		}, nil

	case ActionRollbackAgent:
		current := strings.TrimSpace(fields["current_version"])
		if current == "" {
			current = strings.TrimSpace(fields["previous_version"])
		}
		return &RollbackCommand{
			CommandHeader:  header,
			TargetVersion:  strings.TrimSpace(fields["target_version"]),
			CurrentVersion: current,
		}, nil

	case ActionRebuildAgent:
		version := strings.TrimSpace(fields["new_version"])
		if version == "" {
			version = strings.TrimSpace(fields["target_version"])
		}
		return &RebuildCommand{
			CommandHeader: header,
			Version:       version,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func parseStrategy(raw string) UpdateStrategy {
	switch UpdateStrategy(strings.TrimSpace(raw)) {
	case UpdateStrategyBlueGreen:
		return UpdateStrategyBlueGreen
	default:
		return UpdateStrategyRolling
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

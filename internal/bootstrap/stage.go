package bootstrap

import (
	"errors"
	"fmt"

	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/internal/platform"
)

// Stage names one step of the pipeline, in execution order.
type Stage string

const (
	StageDetectPlatform   Stage = "detect_platform"
	StageEnsureDataDir    Stage = "ensure_data_dir"
	StageEnsureCLI        Stage = "ensure_cli"
	StageConfigureProfile Stage = "configure_profile"
	StageSyncDataset      Stage = "sync_dataset"
)

// Stages lists every stage in order.
var Stages = []Stage{
	StageDetectPlatform,
	StageEnsureDataDir,
	StageEnsureCLI,
	StageConfigureProfile,
	StageSyncDataset,
}

// StageError records which stage halted the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// ExitCode maps a Run error onto a process exit status: 0 on success, 1 for an
// unsupported platform, the child's status when an external command failed,
// and 1 for anything else. A child killed by a signal reports -1 and maps to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, platform.ErrUnsupportedPlatform) {
		return 1
	}
	if code, ok := execx.ExitCode(err); ok && code > 0 {
		return code
	}
	return 1
}

// Package process starts and controls the OS processes behind supervised domains.
//
// A Process wraps os/exec for one spawn of a domain worker:
//   - the child runs in its own process group, so signals reach shell wrappers and their children
//   - Terminate sends SIGTERM (the graceful request), Kill sends SIGKILL
//   - Done is closed once the exit status is known; ExitCode reports it
//   - stdout/stderr lines are re-logged through a pluggable LogParser
//
// Stop implements the foreground grace sequence used by the exec wrapper:
// terminate, wait up to the grace period, then kill.
//
//	proc, err := process.Start("trading", "python agents/trading/orchestrator.py", process.Options{
//	    Logger: logging.GetLogger("process"),
//	    Env:    []string{"HOLUS_DOMAIN=trading"},
//	})
//	if err != nil {
//	    return err
//	}
//	<-proc.Done()
//	log.Println("exit", proc.ExitCode())
package process

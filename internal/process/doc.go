// Package process supervises the external scripts shown on the dashboard.
//
// A Supervisor owns a registry of script definitions and at most one active
// Handle per script. Starting a script renders its command template, spawns
// the command in its own process group and relays its stdout and stderr line
// by line to subscribers. Stopping sends SIGTERM to the group, waits for a
// grace period, escalates to SIGKILL and gives up after a second bound.
//
//	sup := process.NewSupervisor(defs, process.WithGracePeriod(3*time.Second))
//	defer sup.ShutdownAll()
//
//	cancel := sup.OnLine("core", func(line process.OutputLine) {
//	    fmt.Println(line.Text)
//	})
//	defer cancel()
//
//	h, err := sup.Start("core", map[string]string{"episode": "3"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	<-h.Done()
//
// # Handle lifecycle
//
//	Starting -> Running -> Stopping -> Stopped
//	Starting -> Failed                      (spawn failed)
//	Running  -> Stopped                     (exited on its own, any code)
//	Stopping -> Failed                      (SIGKILL not confirmed in time)
//
// Stopped and Failed are terminal. A terminal handle stays registered so its
// exit information can be queried until the script is started again or
// cleared.
//
// # Output
//
// Each running handle has a relay: two readers feeding a bounded queue and one
// delivery goroutine that numbers lines and calls the OnLine subscribers.
// When subscribers fall behind and the queue is full, the oldest queued lines
// are dropped and reported as a single Dropped line. After the process exits
// and its pipes are drained, exactly one EOF line is delivered, followed by
// the transition to Stopped.
//
// # Thread Safety
//
// Supervisor and Handle are safe for concurrent use. Start, Stop, Restart and
// Clear are serialized per script; different scripts proceed in parallel.
// Subscriber callbacks run on supervisor goroutines and must not call back
// into the supervisor for the same script synchronously.
package process

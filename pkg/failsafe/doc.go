// Package failsafe implements the per-view failsafe poll coordinator.
//
// A view refreshes its state from the server whenever a matching hub
// notification arrives. The coordinator adds a backstop: if no notification
// has been observed for the failsafe interval, it refreshes on its own.
//
// # Timer Behavior
//
//   - One refresh immediately on Start
//   - A staleness check every CheckPeriod (default: 5 seconds)
//   - A refresh when the last signal is older than FailsafeInterval
//     (default: 30 seconds)
//   - A matching notification resets the staleness clock and refreshes at once
//
// With the defaults, a dead channel still yields a refresh at most 35 seconds
// after the previous one, and the timer never refreshes more often than every
// 30 seconds.
//
// # Lifecycle
//
// A coordinator moves from IDLE to ACTIVE on Start and to STOPPED on Stop.
// Refreshes run one at a time on the coordinator's goroutine. Notifications
// arriving during a refresh coalesce into one follow-up refresh. Stop cancels
// the context of an in-flight refresh and waits for it; once Stop returns no
// further refresh is invoked.
package failsafe

// Package scheduler decides when a schedule fires, whether a fired action
// needs sign-off before running, how each action kind is dispatched, and
// what gets durably recorded about every attempt.
//
// The service runs a single periodic tick loop. Each tick lists active
// schedules whose next-run time has passed and fires them under a global
// concurrency bound. A firing creates one execution per action in order;
// the approval gate routes each either straight to its executor or into
// awaiting_approval. One action's failure never aborts its siblings or
// the loop.
package scheduler

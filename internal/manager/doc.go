// Package manager is the service behind the HTTP API. It admits commentary
// generations through a bounded queue, forwards segmentation requests, and
// reports readiness and status. It is structured into small files by concern:
//
//   - manager.go: Manager type, constructor, Commentary and Segment.
//   - config.go: ManagerConfig and package defaults.
//   - errors.go: error types and helpers (IsTooBusy).
//   - admission.go: queue depth and concurrency admission.
//   - status_report.go: Ready, Status and Drain.
//
// Generation itself lives in package commentary; the manager never touches
// model state.
package manager

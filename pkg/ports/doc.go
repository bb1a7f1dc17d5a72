/*
Package ports defines the driven ports (interfaces) of the preparation flow.

These interfaces decouple the core logic from external implementations, allowing
the state machine to work with various graph sources, storage backends, parameter
services and run dispatchers.

# Key Interfaces

  - GraphSource: Reports the current pipeline nodes (e.g., from Loam or Memory).
  - ParamFetcher: Fetches the processing variables of a datasource node.
  - RunDispatcher: Hands a RunRequest off to the run engine.
  - Notifier: Surfaces user-facing notices.
  - SessionStore: Persists and loads preparation Sessions.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - FileUploader: Stores uploaded local files and resolves their ids.
*/
package ports

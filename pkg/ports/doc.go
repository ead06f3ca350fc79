/*
Package ports defines the driven ports (interfaces) of the governance interpreter.

These interfaces decouple the interpreter from the collaborators it consumes as opaque
services: the document loader, the protocol transport, the credential wallet, and the
persistence of sessions between steps.

# Key Interfaces

  - FrameworkLoader: supplies the parsed governance framework (e.g. from a file).
  - ProtocolExecutor: runs one protocol action (connect, issue, present) and reports its outcome.
  - CredentialVerifier: answers credential-holding atoms of permission predicates.
  - SessionStore: persists flow sessions between steps.
  - DistributedLocker: provides distributed locking for handling concurrent session access.
*/
package ports

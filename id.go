package wsupervisor

import "github.com/google/uuid"

// ClientID uniquely identifies a Client instance across its lifetime, for
// log correlation: the Client's own logger carries it as client_id. Metrics
// are not labeled with it.
type ClientID = uuid.UUID

// AttemptID uniquely identifies a single Transport connect attempt. The
// Supervisor compares the AttemptID an event arrives with against its
// currently active one to implement the stale-Transport discarding spec.md
// §4.1/§5 requires.
type AttemptID = uuid.UUID

func newClientID() ClientID { return uuid.New() }

func newAttemptID() AttemptID { return uuid.New() }

package core

import (
	"fmt"
	"io"
)

// writeLifetimeStats prints the teardown summary of a job system.
func writeLifetimeStats(w io.Writer, st SystemStats) error {
	_, err := fmt.Fprintf(w,
		"[JobSystem %s] backend=%s workers=%d jobs dispatched=%d completed=%d panicked=%d rejected=%d stolen=%d fibers=%d\n",
		st.Name, st.Backend, st.Workers,
		st.Dispatched, st.Completed, st.Panicked, st.Rejected, st.Stolen,
		st.FiberPool.Created,
	)
	return err
}

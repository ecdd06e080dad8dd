/*
Package workers sizes worker pools in containerized environments.

runtime.NumCPU reports the host's CPUs even when cgroup limits allow far
fewer. Go 1.19+ sets GOMAXPROCS from the container CPU limit, so the helpers
here scale from GOMAXPROCS instead:

	// one worker per CPU, at most 8
	n := workers.ForCPU(cfg.ImportWorkers, 8)

	// two workers per CPU, at most 16
	n := workers.ForIO(cfg.ImportWorkers, 16)

A positive configured count always wins (capped by the limit). The importer
passes the import_workers setting, which viper also reads from
REFBOARD_IMPORT_WORKERS:

	env:
	- name: REFBOARD_IMPORT_WORKERS
	  value: "4"

With a 2 CPU limit and no override, ForCPU(0, 8) returns 2 and ForIO(0, 8)
returns 4.

All functions are safe for concurrent use.
*/
package workers

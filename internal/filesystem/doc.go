/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors.

Image libraries often live on network mounts, where ESTALE shows up
transiently when files are replaced on the server. Only ESTALE triggers a
retry; every other error is returned immediately.

	f, err := filesystem.OpenWithRetry(ctx, path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

The defaults retry three times with exponential backoff from 50ms, capped
at 500ms. Waiting between attempts stops early when ctx is done.

Retries, stale handle errors and final failures are counted in the
refboard_filesystem_* metrics, labeled by operation.
*/
package filesystem

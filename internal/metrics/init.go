package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"open", "initialize_schema", "insert_image", "update_image",
		"rename_image", "delete_image", "set_image_tags", "rename_tag", "delete_tag",
		"set_image_vector", "delete_image_vector", "set_gallery_order", "move_gallery_order",
		"list_images", "search_text", "search_vector", "images_by_ids", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, r := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(r)
	}

	for _, shape := range []string{"list", "text", "vector", "ids"} {
		SearchRequestsTotal.WithLabelValues(shape)
		SearchResultsReturned.WithLabelValues(shape)
	}

	for _, status := range []string{"success", "error", "skipped"} {
		ImportTotal.WithLabelValues(status)
	}
	for _, status := range []string{"success", "error"} {
		EmbedRequestsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}

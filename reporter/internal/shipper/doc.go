// Package shipper encodes report rows and delivers them to object storage.
//
// A report run hands Ship one Batch per output file. Every batch is encoded
// (encode.go: CSV with an optional header row, or JSON Lines) before the
// first upload starts, so an encoding failure ships nothing.
//
// Uploaders: S3Uploader (s3.go) writes to a bucket with PutObject; DirUploader
// (dir.go) writes under a local directory for dry runs. Failed uploads are
// retried with truncated exponential backoff and jitter (backoff.go).
package shipper

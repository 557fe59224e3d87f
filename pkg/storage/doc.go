// Package storage archives rendered messages in S3-compatible object storage.
//
// Archiving is optional. When S3_BUCKET is empty the service runs without
// it; when set, the HTML of every sent message is written under
// sends/{owner}/{send id}.html and can be fetched back or shared through a
// presigned URL.
//
//	arch, err := storage.New(cfg)
//	if err != nil {
//		return err
//	}
//	err = arch.Put(ctx, storage.SendKey(ownerID, sendID), "text/html; charset=utf-8", html)
package storage

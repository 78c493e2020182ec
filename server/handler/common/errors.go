package common

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/server/resp"
	"github.com/indieinfra/pantry/server/util"
)

// LogAndWriteError logs an error with request context and maps the registry
// error taxonomy to client responses.
func LogAndWriteError(w http.ResponseWriter, r *http.Request, op string, err error) {
	rl := util.RequestLogger(r, zap.NewNop())

	var mwe *asset.MetadataWriteError
	switch {
	case errors.As(err, &mwe):
		rl.Error(op+" failed", zap.Error(err), zap.String("url", mwe.URL))
		resp.WriteMetadataWriteFailed(w, "file was stored but could not be cataloged", mwe.URL)
		return
	case errors.Is(err, asset.ErrUnsupportedType):
		resp.WriteUnsupportedMediaType(w, err.Error())
	case errors.Is(err, asset.ErrInvalidID), errors.Is(err, asset.ErrInvalidAsset):
		resp.WriteInvalidRequest(w, err.Error())
	case errors.Is(err, asset.ErrNotFound):
		resp.WriteNotFound(w, "not found")
	case errors.Is(err, asset.ErrStoreUnavailable):
		rl.Warn(op+" failed", zap.Error(err))
		resp.WriteServiceUnavailable(w, "content store unavailable, retry later")
		return
	case errors.Is(err, asset.ErrUploadFailed):
		rl.Warn(op+" failed", zap.Error(err))
		resp.WriteBadGateway(w, "content store rejected the upload")
		return
	default:
		rl.Error(op+" failed", zap.Error(err))
		resp.WriteInternalServerError(w, fmt.Sprintf("%s failed", op))
		return
	}

	rl.Info(op+" rejected", zap.Error(err))
}

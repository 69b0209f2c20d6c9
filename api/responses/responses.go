package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, types.SuccessEnvelope{Data: data})
}

// WriteAck answers with the bare {"ok":true} body webhook providers expect.
func WriteAck(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, types.Ack{OK: true})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if pkgerrors.IsClientFacing(typed.Code()) && typed.Message() != "" {
		msg = typed.Message()
	}
	payload := types.ErrorEnvelope{Error: types.APIError{Code: string(typed.Code()), Message: msg}}
	if meta.DetailsAllowed {
		payload.Error.Details = typed.Details()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}
	WriteJSON(w, meta.HTTPStatus, payload)
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

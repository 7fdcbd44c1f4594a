package formadmin

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/mw/forms/internal/platform/errors"
	"github.com/mw/forms/internal/platform/errors/i18n"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const typeURLPrefix = "type.googleapis.com/"

// errorBody follows the google.rpc.Status JSON shape, with the domain code
// and localized message lifted to the top level.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Status  string        `json:"status"`
	Details []statusEntry `json:"details,omitempty"`
}

type statusEntry struct {
	Type     string            `json:"@type"`
	Reason   string            `json:"reason,omitempty"`
	Domain   string            `json:"domain,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Locale   string            `json:"locale,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// httpStatus maps a gRPC code to an HTTP status.
func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error body localized for the request.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		domainErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	catalog := requestCatalog(r)
	message := catalog.Format(string(domainErr.Code), domainErr.Metadata)
	st := domainErr.Status(catalog.Locale(), message)

	code := httpStatus(st.Code())
	if code >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, code, errorBody{Error: newErrorDetail(domainErr.Code, message, st)})
}

func newErrorDetail(code apperrors.Code, message string, st *status.Status) errorDetail {
	detail := errorDetail{
		Code:    string(code),
		Message: message,
		Status:  st.Code().String(),
	}
	for _, d := range st.Details() {
		switch d := d.(type) {
		case *errdetails.ErrorInfo:
			detail.Details = append(detail.Details, statusEntry{
				Type:     typeURLPrefix + string(d.ProtoReflect().Descriptor().FullName()),
				Reason:   d.GetReason(),
				Domain:   d.GetDomain(),
				Metadata: d.GetMetadata(),
			})
		case *errdetails.LocalizedMessage:
			detail.Details = append(detail.Details, statusEntry{
				Type:    typeURLPrefix + string(d.ProtoReflect().Descriptor().FullName()),
				Locale:  d.GetLocale(),
				Message: d.GetMessage(),
			})
		}
	}
	return detail
}

// langParam selects a language explicitly and wins over Accept-Language.
const langParam = "lang"

// requestCatalog picks the message catalog for r.
func requestCatalog(r *http.Request) *i18n.Catalog {
	if lang := strings.TrimSpace(r.URL.Query().Get(langParam)); lang != "" {
		return i18n.GetCatalog(lang)
	}
	return i18n.GetCatalog(r.Header.Get("Accept-Language"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

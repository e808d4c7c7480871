package twon

import "fmt"

// APIErrorKind is the semantic meaning of a vendor error code.
type APIErrorKind int

const (
	APIErrNotSupported APIErrorKind = iota + 1
	APIErrInvalidPath
	APIErrInvalidMethod
	APIErrFunctionDisabled
	APIErrInvalidConnectionType
	APIErrInvalidAuthenticationMethod
	APIErrAuthorizationRequired
	APIErrInsufficientPrivileges
	APIErrMissingParameter
	APIErrInvalidParameterValue
	APIErrParameterTooLarge
	APIErrProcessingError
	APIErrNoDataAvailable
	APIErrParameterCollision
	APIErrRejected
	APIErrUnsupportedFileVersion
)

// apiErrorCodes maps the vendor's numeric codes onto kinds. Codes 5 and 6
// are not assigned by the firmware.
var apiErrorCodes = map[int]APIErrorKind{
	1:  APIErrNotSupported,
	2:  APIErrInvalidPath,
	3:  APIErrInvalidMethod,
	4:  APIErrFunctionDisabled,
	7:  APIErrInvalidConnectionType,
	8:  APIErrInvalidAuthenticationMethod,
	9:  APIErrAuthorizationRequired,
	10: APIErrInsufficientPrivileges,
	11: APIErrMissingParameter,
	12: APIErrInvalidParameterValue,
	13: APIErrParameterTooLarge,
	14: APIErrProcessingError,
	15: APIErrNoDataAvailable,
	16: APIErrParameterCollision,
	17: APIErrRejected,
	18: APIErrUnsupportedFileVersion,
}

var apiErrorNames = map[APIErrorKind]string{
	APIErrNotSupported:                "not-supported",
	APIErrInvalidPath:                 "invalid-path",
	APIErrInvalidMethod:               "invalid-method",
	APIErrFunctionDisabled:            "function-disabled",
	APIErrInvalidConnectionType:       "invalid-connection-type",
	APIErrInvalidAuthenticationMethod: "invalid-authentication-method",
	APIErrAuthorizationRequired:       "authorization-required",
	APIErrInsufficientPrivileges:      "insufficient-privileges",
	APIErrMissingParameter:            "missing-parameter",
	APIErrInvalidParameterValue:       "invalid-parameter-value",
	APIErrParameterTooLarge:           "parameter-too-large",
	APIErrProcessingError:             "processing-error",
	APIErrNoDataAvailable:             "no-data-available",
	APIErrParameterCollision:          "parameter-collision",
	APIErrRejected:                    "rejected",
	APIErrUnsupportedFileVersion:      "unsupported-file-version",
}

func (k APIErrorKind) String() string {
	if name, ok := apiErrorNames[k]; ok {
		return name
	}
	return fmt.Sprintf("APIErrorKind(%d)", int(k))
}

// KindForCode looks up the kind for a vendor code.
func KindForCode(code int) (APIErrorKind, bool) {
	kind, ok := apiErrorCodes[code]
	return kind, ok
}

// ClassifyAPIError turns the error code of a failed envelope into a
// DeviceError. A device answering insufficient-privileges to a request that
// carried no credentials is really asking for authorization. Codes outside
// the table mean firmware this client does not understand.
func ClassifyAPIError(code int, hadCredentials bool) *DeviceError {
	kind, ok := KindForCode(code)
	if !ok {
		return &DeviceError{
			Type:    ErrTypeUnsupportedDevice,
			Message: fmt.Sprintf("unrecognized API error code %d", code),
			Code:    code,
		}
	}

	if kind == APIErrInsufficientPrivileges && !hadCredentials {
		kind = APIErrAuthorizationRequired
	}

	return &DeviceError{
		Type:      ErrTypeAPI,
		Message:   "request rejected by device",
		Kind:      kind,
		Code:      code,
		Retryable: kind == APIErrProcessingError,
	}
}

package capture

import (
	"errors"
	"fmt"
)

type DeviceErrorKind string

const (
	DevicePermissionDenied DeviceErrorKind = "permission_denied"
	DeviceNotFound         DeviceErrorKind = "not_found"
	DeviceBusy             DeviceErrorKind = "busy"
	DeviceConstraints      DeviceErrorKind = "constraints"
	DeviceUnknown          DeviceErrorKind = "unknown"
)

// deviceErrorKinds maps platform error names to kinds. Both the current and
// the legacy names are listed.
var deviceErrorKinds = map[string]DeviceErrorKind{
	"NotAllowedError":             DevicePermissionDenied,
	"PermissionDeniedError":       DevicePermissionDenied,
	"NotFoundError":               DeviceNotFound,
	"DevicesNotFoundError":        DeviceNotFound,
	"NotReadableError":            DeviceBusy,
	"TrackStartError":             DeviceBusy,
	"OverconstrainedError":        DeviceConstraints,
	"ConstraintNotSatisfiedError": DeviceConstraints,
}

var deviceErrorDescriptions = map[DeviceErrorKind]string{
	DevicePermissionDenied: "Permiso para acceder al micrófono denegado. Por favor, habilita el acceso en la configuración de tu navegador.",
	DeviceNotFound:         "No se encontró ningún micrófono. Asegúrate de que uno esté conectado y funcionando.",
	DeviceBusy:             "El micrófono no se puede utilizar en este momento, es posible que esté siendo usado por otra aplicación o que haya un problema de hardware.",
	DeviceConstraints:      "Las restricciones de audio solicitadas no son compatibles con el dispositivo.",
}

// NamedError is implemented by platform errors that carry a stable name,
// such as the DOMException names reported by browsers.
type NamedError interface {
	error
	ErrorName() string
}

// PlatformError is a NamedError built from a reported name and message.
type PlatformError struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

func (e *PlatformError) ErrorName() string { return e.Name }

// DeviceError is a microphone acquisition failure with a user-facing
// description.
type DeviceError struct {
	Kind DeviceErrorKind
	Name string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("microphone unavailable (%s): %v", e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Description is the message shown to the user.
func (e *DeviceError) Description() string {
	if d, ok := deviceErrorDescriptions[e.Kind]; ok {
		return d
	}
	name := e.Name
	if name == "" {
		name = "desconocido"
	}
	return "Ocurrió un error inesperado al acceder al micrófono: " + name
}

// ClassifyDeviceError maps err by its platform name. Errors without a known
// name fall into DeviceUnknown.
func ClassifyDeviceError(err error) *DeviceError {
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}
	out := &DeviceError{Kind: DeviceUnknown, Err: err}
	var named NamedError
	if errors.As(err, &named) {
		out.Name = named.ErrorName()
		if kind, ok := deviceErrorKinds[out.Name]; ok {
			out.Kind = kind
		}
	}
	return out
}

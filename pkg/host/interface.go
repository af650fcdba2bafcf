package host

// Device defines the interface for scale devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Readings() <-chan Reading
	Responses() <-chan Response
	Tare() error
	Calibrate(refGrams float64) error
	IsConnected() bool
}

var _ Device = (*Serial)(nil)

var _ Device = (*Mock)(nil)

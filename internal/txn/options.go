package txn

import "github.com/ethereum/go-ethereum/core/types"

const (
	DefaultPendingMessage = "Please confirm the transaction in your wallet"
	DefaultSuccessMessage = "Transaction confirmed!"
	DefaultErrorMessage   = "Transaction failed"
)

// Options configures one Execute call
type Options struct {
	Pending       string
	Success       func(*types.Receipt) string
	Error         func(error) string
	OnSuccess     func(*types.Receipt)
	OnError       func(error)
	ShowToast     bool
	ShowLoading   bool
	Confirmations uint64
}

// Option mutates Options
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Pending:       DefaultPendingMessage,
		Success:       func(*types.Receipt) string { return DefaultSuccessMessage },
		Error:         func(error) string { return DefaultErrorMessage },
		ShowToast:     true,
		ShowLoading:   true,
		Confirmations: 1,
	}
}

func resolve(opts []Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Confirmations == 0 {
		o.Confirmations = 1
	}
	return o
}

// WithPending sets the progress message
func WithPending(msg string) Option {
	return func(o *Options) { o.Pending = msg }
}

// WithSuccess sets a fixed success message. An empty message dismisses the
// progress notification instead.
func WithSuccess(msg string) Option {
	return func(o *Options) {
		o.Success = func(*types.Receipt) string { return msg }
	}
}

// WithSuccessFunc derives the success message from the receipt
func WithSuccessFunc(fn func(*types.Receipt) string) Option {
	return func(o *Options) { o.Success = fn }
}

// WithError sets a fixed failure title
func WithError(msg string) Option {
	return func(o *Options) {
		o.Error = func(error) string { return msg }
	}
}

// WithErrorFunc derives the failure title from the error
func WithErrorFunc(fn func(error) string) Option {
	return func(o *Options) { o.Error = fn }
}

// OnSuccess runs after the success state is recorded
func OnSuccess(fn func(*types.Receipt)) Option {
	return func(o *Options) { o.OnSuccess = fn }
}

// OnError runs on every failure, including user rejection
func OnError(fn func(error)) Option {
	return func(o *Options) { o.OnError = fn }
}

// WithoutToast suppresses notifications
func WithoutToast() Option {
	return func(o *Options) { o.ShowToast = false }
}

// WithoutLoading leaves the shared state at preparing for the whole call
func WithoutLoading() Option {
	return func(o *Options) { o.ShowLoading = false }
}

// WithConfirmations sets the number of confirmations to await
func WithConfirmations(n uint64) Option {
	return func(o *Options) { o.Confirmations = n }
}

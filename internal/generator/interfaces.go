//go:generate mockgen -source=interfaces.go -destination=interface_mock.go -package=generator
package generator

import "context"

type (
	PackageScanner interface {
		// Scan finds the config and hooks functions declared in dir,
		// ignoring the file named skip.
		Scan(ctx context.Context, dir, skip string) (*Output, error)
	}
)

package version

// Version is overridden at build time with
// -ldflags "-X github.com/perarneng/gmail2s3/pkg/version.Version=..."
var Version = "0.1.0"

// Info is the body of GET / and GET /version.
type Info struct {
	Server string `json:"gmail2s3-server" yaml:"gmail2s3-server"`
}

func Current() Info {
	return Info{Server: Version}
}

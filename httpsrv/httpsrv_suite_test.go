package httpsrv_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestHttpsrv(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "httpsrv Suite")
}

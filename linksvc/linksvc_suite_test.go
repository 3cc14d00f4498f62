package linksvc_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestLinksvc(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "linksvc Suite")
}

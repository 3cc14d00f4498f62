package authn_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/shortenlabs/shortener/authn"
)

var _ = Describe("Gate", func() {
	var gate *authn.Gate

	BeforeEach(func() {
		hash, err := authn.HashPassword("correct horse battery staple")
		Expect(err).NotTo(HaveOccurred())
		gate = authn.New(authn.Config{
			APIKey:            "test-api-key",
			AdminUsername:     "admin",
			AdminPasswordHash: hash,
			JWTSecret:         "test-secret",
			SessionTTL:        time.Minute,
		}, nil)
	})

	Describe("Authenticate", func() {
		It("accepts a matching API key", func() {
			Expect(gate.Authenticate("test-api-key", "")).To(BeTrue())
		})

		It("rejects a wrong API key", func() {
			Expect(gate.Authenticate("wrong-key", "")).To(BeFalse())
		})

		It("rejects no credentials at all", func() {
			Expect(gate.Authenticate("", "")).To(BeFalse())
		})

		It("accepts a bearer token from a successful login", func() {
			session, err := gate.Login("admin", "correct horse battery staple")
			Expect(err).NotTo(HaveOccurred())
			Expect(gate.Authenticate("", session.Token)).To(BeTrue())
		})

		It("rejects a bearer token after logout", func() {
			session, err := gate.Login("admin", "correct horse battery staple")
			Expect(err).NotTo(HaveOccurred())
			gate.Logout(session.Token)
			Expect(gate.Authenticate("", session.Token)).To(BeFalse())
		})

		It("rejects a garbage bearer token", func() {
			Expect(gate.Authenticate("", "not-a-real-token")).To(BeFalse())
		})
	})

	Describe("Login", func() {
		It("fails on wrong password without distinguishing from unknown user", func() {
			_, errWrongPass := gate.Login("admin", "nope")
			_, errWrongUser := gate.Login("someone-else", "correct horse battery staple")
			Expect(errWrongPass).To(HaveOccurred())
			Expect(errWrongUser).To(HaveOccurred())
			Expect(errWrongPass.Error()).To(Equal(errWrongUser.Error()))
		})

		It("issues a session with the configured TTL", func() {
			before := time.Now().UTC()
			session, err := gate.Login("admin", "correct horse battery staple")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.ExpiresAt).To(BeTemporally(">", before.Add(59*time.Second)))
		})
	})

	Describe("AuthMethod", func() {
		It("reports api_key when that scheme matched", func() {
			Expect(gate.AuthMethod("test-api-key", "")).To(Equal("api_key"))
		})

		It("reports bearer otherwise", func() {
			session, _ := gate.Login("admin", "correct horse battery staple")
			Expect(gate.AuthMethod("", session.Token)).To(Equal("bearer"))
		})
	})
})

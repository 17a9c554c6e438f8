package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tokens", func() {
	var (
		clock  *testClock
		tokens *Tokens
		user   *User
	)

	BeforeEach(func() {
		clock = &testClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
		tokens = newTestTokens(clock)
		user = &User{ID: "u1", Email: "ada@example.com", Name: "Ada"}
	})

	It("issues tokens it can parse", func() {
		token, err := tokens.Issue(user)
		Expect(err).NotTo(HaveOccurred())

		claims, err := tokens.Parse(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("u1"))
		Expect(claims.Email).To(Equal("ada@example.com"))
		Expect(claims.Issuer).To(Equal("eco-receipts"))
		Expect(claims.ExpiresAt.Time).To(BeTemporally("==", clock.Now().Add(time.Hour)))
	})

	It("rejects expired tokens", func() {
		token, err := tokens.Issue(user)
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(time.Hour + time.Second)
		_, err = tokens.Parse(token)
		Expect(err).To(MatchError(ErrInvalidToken))
		Expect(err).To(MatchError(jwt.ErrTokenExpired))
	})

	It("rejects tokens signed with another secret", func() {
		other, err := NewTokensWithClock("another-secret", time.Hour, clock.Now)
		Expect(err).NotTo(HaveOccurred())
		token, err := other.Issue(user)
		Expect(err).NotTo(HaveOccurred())

		_, err = tokens.Parse(token)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects other signing methods", func() {
		claims := &Claims{
			Email: user.Email,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "eco-receipts",
				Subject:   user.ID,
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		Expect(err).NotTo(HaveOccurred())

		_, err = tokens.Parse(token)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects tokens from another issuer", func() {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				Subject:   user.ID,
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		Expect(err).NotTo(HaveOccurred())

		_, err = tokens.Parse(token)
		Expect(err).To(MatchError(jwt.ErrTokenInvalidIssuer))
	})

	It("rejects tokens without an expiry", func() {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "eco-receipts", Subject: user.ID}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		Expect(err).NotTo(HaveOccurred())

		_, err = tokens.Parse(token)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects garbage", func() {
		_, err := tokens.Parse("not.a.token")
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	Describe("NewTokens", func() {
		It("requires a secret", func() {
			_, err := NewTokens("", time.Hour)
			Expect(err).To(MatchError(ContainSubstring("secret is required")))
		})

		It("requires a positive lifetime", func() {
			_, err := NewTokens(testSecret, 0)
			Expect(err).To(MatchError(ContainSubstring("must be positive")))
		})
	})
})

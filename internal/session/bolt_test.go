package session

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("LoadSession", func() {
		var (
			persisted *Persisted
			err       error
		)

		JustBeforeEach(func() {
			persisted, err = db.LoadSession()
		})

		When("nothing is stored", func() {
			It("returns nil", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(persisted).To(BeNil())
			})
		})

		When("a session is stored", func() {
			BeforeEach(func() {
				Expect(db.SaveSession("token-1", []byte(`{"id":"u1"}`))).To(Succeed())
			})

			It("returns the token and the user", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(persisted.Token).To(Equal("token-1"))
				Expect(string(persisted.User)).To(Equal(`{"id":"u1"}`))
			})
		})

		When("it was stored before reopening the database", func() {
			BeforeEach(func() {
				Expect(db.SaveSession("token-2", []byte(`{"id":"u2"}`))).To(Succeed())
				Expect(db.Close()).To(Succeed())

				var openErr error
				db, openErr = NewBoltDB(dbPath)
				Expect(openErr).NotTo(HaveOccurred())
			})

			It("is still there", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(persisted.Token).To(Equal("token-2"))
			})
		})
	})

	Describe("SaveSession", func() {
		It("replaces the previous session", func() {
			Expect(db.SaveSession("old", []byte(`{"id":"old"}`))).To(Succeed())
			Expect(db.SaveSession("new", []byte(`{"id":"new"}`))).To(Succeed())

			persisted, err := db.LoadSession()
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted.Token).To(Equal("new"))
			Expect(string(persisted.User)).To(Equal(`{"id":"new"}`))
		})
	})

	Describe("ClearSession", func() {
		It("removes the token and the user", func() {
			Expect(db.SaveSession("token", []byte(`{"id":"u1"}`))).To(Succeed())
			Expect(db.ClearSession()).To(Succeed())

			persisted, err := db.LoadSession()
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted).To(BeNil())
		})

		It("succeeds when nothing is stored", func() {
			Expect(db.ClearSession()).To(Succeed())
		})
	})

	Describe("accounts", func() {
		var account *Account

		BeforeEach(func() {
			account = &Account{
				User: User{
					ID:        "u1",
					Email:     "Ada@Example.com",
					Name:      "Ada",
					CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
				},
				PasswordHash: []byte("hash"),
			}
			Expect(db.CreateAccount(account)).To(Succeed())
		})

		It("finds an account by email regardless of case", func() {
			found, err := db.GetAccount("ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(Equal(account))
		})

		It("refuses a second account with the same email", func() {
			dup := &Account{User: User{ID: "u2", Email: "ADA@example.com"}}
			Expect(db.CreateAccount(dup)).To(MatchError(ErrDuplicateEmail))

			found, err := db.GetAccount("ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.User.ID).To(Equal("u1"))
		})

		It("reports unknown emails", func() {
			_, err := db.GetAccount("nobody@example.com")
			Expect(err).To(MatchError(ErrAccountNotFound))
		})
	})

	Describe("NewBoltDB", func() {
		It("fails when the directory does not exist", func() {
			_, err := NewBoltDB(filepath.Join(GinkgoT().TempDir(), "missing", "test.db"))
			Expect(err).To(MatchError(ContainSubstring("opening boltdb")))
		})
	})
})

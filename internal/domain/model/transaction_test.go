package model_test

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	model "github.com/okian/ccsl/internal/domain/model"
)

func TestTransaction(t *testing.T) {
	convey.Convey("Given a Transaction value", t, func() {
		ts := time.Now()
		tx := model.Transaction{
			ID:                "tx-1",
			SourceWallet:      "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
			DestinationWallet: "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy",
			Amount:            0.001,
			Timestamp:         ts,
			ContributionID:    "c-1",
		}

		convey.Convey("Then it starts unverified", func() {
			convey.So(tx.Verified, convey.ShouldBeFalse)
		})

		convey.Convey("Then a job carries a copy", func() {
			job := model.VerificationJob{Transaction: tx, EnqueuedAt: ts}
			tx.Verified = true
			convey.So(job.Transaction.Verified, convey.ShouldBeFalse)
			convey.So(job.Transaction.ID, convey.ShouldEqual, "tx-1")
		})
	})
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strm/src/common"
	"strm/src/db"
	"strm/src/lib"
	"strm/src/middlewares"
	"strm/src/models"
	"strm/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func verificationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/verify", func(ctx *gin.Context) {
			var body types.VerifyTicketRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			engine, err := common.NewEngine(db.GetDb())
			if err != nil {
				ctx.Status(http.StatusInternalServerError)
				return
			}
			var askingPrice float32
			if body.Price != nil {
				askingPrice = *body.Price
			}
			result, err := engine.Verify(ctx, common.VerifyRequest{
				RawPayload:      body.Code,
				ExpectedEventID: body.EventID,
				ActorID:         ctx.GetUint("id"),
				Action:          types.VerificationAction(body.Action),
				AskingPrice:     askingPrice,
			})
			if err != nil {
				log.Printf("Error verifying ticket: %s\n", err.Error())
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		POST("/listings", func(ctx *gin.Context) {
			var body types.CreateListingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			idemKey := idempotencyCacheKey("listing", userId, ctx.GetHeader("Idempotency-Key"))
			if replayIdempotent(ctx, idemKey) {
				return
			}

			engine, err := common.NewEngine(db.GetDb())
			if err != nil {
				ctx.Status(http.StatusInternalServerError)
				return
			}
			result, err := engine.Verify(ctx, common.VerifyRequest{
				RawPayload:      body.Code,
				ExpectedEventID: body.EventID,
				ActorID:         userId,
				Action:          types.ACTION_LIST,
				AskingPrice:     body.Price,
			})
			if err != nil {
				log.Printf("Error verifying ticket for listing: %s\n", err.Error())
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
				return
			}
			if !result.IsValid {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"data": result})
				return
			}

			var listing models.Listing
			var status *models.TicketStatus
			err = db.GetDb().Transaction(func(tx *gorm.DB) error {
				listing = models.Listing{
					TicketID: result.TicketID,
					EventID:  result.EventID,
					SellerID: userId,
					Price:    body.Price,
					Status:   types.LISTING_OPEN,
				}
				if err := tx.Create(&listing).Error; err != nil {
					return err
				}
				tm := common.NewTransferManager(tx)
				status, err = tm.CommitList(ctx, result.TicketID, listing.ID, userId)
				return err
			})
			if err != nil {
				abortWithCommitError(ctx, err)
				return
			}

			response := gin.H{"data": gin.H{
				"listing":  listing,
				"status":   status,
				"warnings": result.Warnings,
			}}
			storeIdempotent(ctx, idemKey, response)
			ctx.JSON(http.StatusCreated, response)
		}).
		POST("/purchases", func(ctx *gin.Context) {
			var body types.CreatePurchaseRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			idemKey := idempotencyCacheKey("purchase", userId, ctx.GetHeader("Idempotency-Key"))
			if replayIdempotent(ctx, idemKey) {
				return
			}

			engine, err := common.NewEngine(db.GetDb())
			if err != nil {
				ctx.Status(http.StatusInternalServerError)
				return
			}
			result, err := engine.Verify(ctx, common.VerifyRequest{
				RawPayload:      body.Code,
				ExpectedEventID: body.EventID,
				ActorID:         userId,
				Action:          types.ACTION_PURCHASE,
			})
			if err != nil {
				log.Printf("Error verifying ticket for purchase: %s\n", err.Error())
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
				return
			}
			if !result.IsValid {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"data": result})
				return
			}

			tm := common.NewTransferManager(db.GetDb())
			status, transfer, err := tm.CommitSale(ctx, result.TicketID, userId, body.ListingID)
			if err != nil {
				abortWithCommitError(ctx, err)
				return
			}

			response := gin.H{"data": gin.H{
				"status":   status,
				"transfer": transfer,
			}}
			storeIdempotent(ctx, idemKey, response)
			ctx.JSON(http.StatusCreated, response)
		}).
		POST("/admission", middlewares.RequireRole("staff", "admin"), func(ctx *gin.Context) {
			var body types.AdmissionRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			engine, err := common.NewEngine(db.GetDb())
			if err != nil {
				ctx.Status(http.StatusInternalServerError)
				return
			}
			result, err := engine.Verify(ctx, common.VerifyRequest{
				RawPayload:      body.Code,
				ExpectedEventID: body.EventID,
				ActorID:         ctx.GetUint("id"),
				Action:          types.ACTION_GATE,
			})
			if err != nil {
				log.Printf("Error verifying ticket at gate: %s\n", err.Error())
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
				return
			}
			if !result.IsValid {
				// a double scan is operationally different from a forged or
				// wrong ticket; tell the gate when it was first admitted
				if len(result.Errors) == 1 && result.HasError(types.ALREADY_USED) {
					ledger := common.NewLedger(db.GetDb())
					if status, err := ledger.GetStatus(ctx, result.TicketID); err == nil {
						ctx.JSON(http.StatusOK, gin.H{
							"result":  types.SCAN_DUPLICATE,
							"used_at": status.UsedAt,
							"data":    result,
						})
						return
					}
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"data": result})
				return
			}

			tm := common.NewTransferManager(db.GetDb())
			status, alreadyUsed, err := tm.CommitUse(ctx, result.TicketID, ctx.GetUint("id"))
			if err != nil {
				abortWithCommitError(ctx, err)
				return
			}
			verdict := types.SCAN_ADMITTED
			if alreadyUsed {
				verdict = types.SCAN_DUPLICATE
			}
			ctx.JSON(http.StatusOK, gin.H{
				"result":  verdict,
				"used_at": status.UsedAt,
				"data":    result,
			})
		})
	return g
}

// abortWithCommitError separates business rejections (stable verdict codes,
// 422) from infrastructure faults (503). Callers must never mistake "ticket
// invalid" for "service down".
func abortWithCommitError(ctx *gin.Context, err error) {
	var code types.TicketVerificationError
	if errors.As(err, &code) {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []types.TicketVerificationError{code}})
		return
	}
	log.Printf("Error on commit: %s\n", err.Error())
	ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
}

func idempotencyCacheKey(scope string, userId uint, key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("idem:%s:%d:%s", scope, userId, key)
}

// replayIdempotent serves the cached response for a repeated Idempotency-Key,
// so a client retrying after a timeout cannot double-commit.
func replayIdempotent(ctx *gin.Context, key string) bool {
	if key == "" {
		return false
	}
	rd := lib.GetRedisClient()
	if rd == nil {
		return false
	}
	content, err := rd.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Error reading from cache: %s\n", err.Error())
		}
		return false
	}
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", []byte(content))
	return true
}

func storeIdempotent(ctx *gin.Context, key string, payload any) {
	if key == "" {
		return
	}
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := rd.SetEx(ctx, key, string(value), 24*time.Hour).Err(); err != nil {
		log.Printf("Error writing to cache: %s\n", err.Error())
	}
}

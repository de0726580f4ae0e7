package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"strm/src/common"
	"strm/src/db"
	"strm/src/middlewares"
	"strm/src/types"
	"strm/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"
)

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/tickets", middlewares.RequireRole("admin"), func(ctx *gin.Context) {
			var body types.IssueTicketRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ticketId, code, err := utils.IssueTicket(ctx.Copy(), &body)
			if err != nil {
				log.Printf("error issuing ticket: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": ticketId, "code": code})
		}).
		GET("/tickets/:id/status", func(ctx *gin.Context) {
			var params types.TicketURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ledger := common.NewLedger(db.GetDb())
			status, err := ledger.GetStatus(ctx, params.TicketID)
			if err != nil {
				log.Printf("Error retrieving TicketStatus [%s]: %s\n", params.TicketID, err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": status})
		}).
		GET("/tickets/:id/transfers", func(ctx *gin.Context) {
			var params types.TicketURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			transfers, err := utils.GetTransferChain(params.TicketID)
			if err != nil {
				log.Printf("Error retrieving transfers for Ticket [%s]: %s\n", params.TicketID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": transfers})
		}).
		POST("/tickets/:id/code", middlewares.RequireRole("admin"), func(ctx *gin.Context) {
			var params types.TicketURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			content, err := utils.GetCachedCode(ctx, params.TicketID)
			if err != nil {
				if errors.Is(redis.Nil, err) {
					log.Printf("No code cached for ticket: %s\n", params.TicketID)
					ctx.Status(http.StatusNotFound)
					return
				}
				log.Printf("Error reading from cache: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}

			wd, err := os.Getwd()
			if err != nil {
				log.Printf("Could not read working directory: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			tempdir := os.Getenv("TEMP_DIR")
			filename := fmt.Sprintf("ticketcode_%s", params.TicketID)
			qrc, err := qrcode.New(content)
			if err != nil {
				log.Printf("Error generating qrcode: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			filepath := path.Join(wd, "..", tempdir, fmt.Sprintf("%s.jpeg", filename))
			if err := qrc.Save(filepath); err != nil {
				log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.FileAttachment(filepath, "eticket.jpeg")
		})
	return g
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"electrotech/services"
)

// RegisterHandler creates a customer account.
func RegisterHandler(c *gin.Context, auth *services.AuthService) {
	var req struct {
		Username  string `json:"username" binding:"required"`
		Email     string `json:"email" binding:"required"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := auth.Register(c.Request.Context(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "registered",
		"user":    newUserResponse(user),
	})
}

// LoginHandler takes form fields username and password. The username field also accepts
// an email address.
func LoginHandler(c *gin.Context, auth *services.AuthService) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	result, err := auth.Login(c.Request.Context(), username, password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Authorization", "Bearer "+result.AccessToken)
	c.JSON(http.StatusOK, gin.H{
		"access_token": result.AccessToken,
		"token_type":   "bearer",
		"expires_at":   result.ExpiresAt,
		"user":         newUserResponse(&result.User),
	})
}

func LogOutHandler(c *gin.Context, auth *services.AuthService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	if err := auth.Logout(c.Request.Context(), identity); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Authorization", "")
	c.JSON(http.StatusOK, gin.H{
		"message": "logged out",
	})
}

func GetUserProfileHandler(c *gin.Context, auth *services.AuthService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	user, err := auth.Profile(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": newUserResponse(user),
	})
}

// UpdateUserProfileHandler applies a partial update. Omitted fields stay unchanged.
func UpdateUserProfileHandler(c *gin.Context, auth *services.AuthService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req struct {
		Email       *string `json:"email"`
		FirstName   *string `json:"first_name"`
		LastName    *string `json:"last_name"`
		Phone       *string `json:"phone"`
		OldPassword string  `json:"old_password"`
		NewPassword string  `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := auth.UpdateProfile(c.Request.Context(), identity.UserID, services.ProfileUpdate{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "profile updated",
		"user":    newUserResponse(user),
	})
}
